package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"daily-news-parser/internal/config"
)

func TestTruncatePreview(t *testing.T) {
	cfg := &config.Config{
		Normalize: config.NormalizeConfig{
			MaxPreviewChars: 50,
		},
	}

	normalizer := NewNormalizer(cfg)

	input := "Это очень длинный текст который должен быть обрезан по лимиту символов"
	result := normalizer.TruncatePreview(input)

	if utf8.RuneCountInString(result) > 50 {
		t.Errorf("TruncatePreview result too long: %d > 50", utf8.RuneCountInString(result))
	}

	if !strings.HasSuffix(result, "…") {
		t.Errorf("TruncatePreview should end with …")
	}

	if !utf8.ValidString(result) {
		t.Errorf("TruncatePreview broke UTF-8: %q", result)
	}

	short := "Krótki opis"
	if got := normalizer.TruncatePreview(short); got != short {
		t.Errorf("short text changed: %q", got)
	}
}

func TestCleanText(t *testing.T) {
	cfg := &config.Config{
		Normalize: config.NormalizeConfig{
			TrimNBSP:       true,
			CollapseSpaces: true,
		},
	}

	normalizer := NewNormalizer(cfg)

	input := "\n\t  Текст\u00a0\u00a0 с\u00a0NBSP   и\n\nпереносами  "
	result := normalizer.CleanText(input)

	if strings.Contains(result, "\u00a0") {
		t.Errorf("NBSP not replaced")
	}

	if want := "Текст с NBSP и переносами"; result != want {
		t.Errorf("CleanText = %q, want %q", result, want)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  https://Example.com/news/  ", "https://example.com/news"},
		{"HTTPS://EXAMPLE.COM/", "https://example.com"},
		{"https://example.com/page#anchor", "https://example.com/page#anchor"},
		{"https://example.com/a?b=1", "https://example.com/a?b=1"},
		{"/relative/path", "/relative/path"},
	}

	for _, tt := range tests {
		result := NormalizeURL(tt.input)
		if result != tt.expected {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}

	if !SameURL("https://www.xda-developers.com/", "https://www.xda-developers.com") {
		t.Errorf("SameURL should ignore trailing slash")
	}
	if SameURL("https://a.com/x", "https://a.com/y") {
		t.Errorf("different paths must differ")
	}
}

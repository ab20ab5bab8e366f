package normalize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"daily-news-parser/internal/config"
)

var spacesRe = regexp.MustCompile(`\s+`)

// Normalizer чистит текстовые поля карточки (заголовок, описание)
type Normalizer struct {
	cfg *config.Config
}

func NewNormalizer(cfg *config.Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// CleanText NBSP → пробел, схлопывание пробелов, trim
func (n *Normalizer) CleanText(text string) string {
	if n.cfg.Normalize.TrimNBSP {
		// Заменяем NBSP (\u00A0) на обычный пробел
		text = strings.ReplaceAll(text, "\u00A0", " ")
	}

	if n.cfg.Normalize.CollapseSpaces {
		text = spacesRe.ReplaceAllString(text, " ")
	}

	return strings.TrimSpace(text)
}

// TruncatePreview обрезает текст до max_preview_chars символов (не байт) по границе слова.
// 0 = без ограничения.
func (n *Normalizer) TruncatePreview(text string) string {
	limit := n.cfg.Normalize.MaxPreviewChars
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	// резервируем один символ под "…"
	runes := []rune(text)
	truncated := string(runes[:limit-1])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 0 {
		truncated = truncated[:lastSpace]
	}

	return strings.TrimRight(truncated, " ,.;:-") + "…"
}

// NormalizeURL приводит URL к виду для сравнения: trim, схема и хост в нижнем
// регистре, без завершающего слэша. Query и fragment сохраняются.
func NormalizeURL(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return urlStr
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// SameURL равны ли адреса после нормализации
func SameURL(a, b string) bool {
	return a == b || NormalizeURL(a) == NormalizeURL(b)
}

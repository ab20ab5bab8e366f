package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
	"gopkg.in/yaml.v3"

	"daily-news-parser/internal/transform"
)

// XPathPrefix селекторы с этим префиксом трактуются как XPath, остальные как CSS
const XPathPrefix = "xpath:"

const (
	RenderHTTP    = "http"
	RenderBrowser = "browser"
)

// SelectorSet селекторы одного источника. container, title и link обязательны.
type SelectorSet struct {
	Container   string `yaml:"container" json:"container"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Image       string `yaml:"image" json:"image"`
	Date        string `yaml:"date" json:"date"`
	Link        string `yaml:"link" json:"link"`
}

// SourceConfig описание одного сайта. Загружается один раз и не меняется.
type SourceConfig struct {
	Name         string                      `yaml:"name" json:"name"`
	Category     string                      `yaml:"category" json:"category"`
	BaseURL      string                      `yaml:"base_url" json:"baseUrl"`
	DateFormat   string                      `yaml:"date_format,omitempty" json:"dateFormat,omitempty"`
	Locale       string                      `yaml:"locale,omitempty" json:"locale,omitempty"`
	Render       string                      `yaml:"render,omitempty" json:"render,omitempty"`
	Enabled      *bool                       `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Selectors    SelectorSet                 `yaml:"selectors" json:"selectors"`
	Transformers map[string][]transform.Step `yaml:"transformers,omitempty" json:"transformers,omitempty"`
}

// IsEnabled источник включён, если enabled не задан явно как false
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// RenderMode http по умолчанию
func (s SourceConfig) RenderMode() string {
	if s.Render == "" {
		return RenderHTTP
	}
	return s.Render
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources загружает и валидирует список источников из YAML файла
func LoadSources(filePath string) ([]SourceConfig, error) {
	if filePath == "" {
		return nil, fmt.Errorf("sources file path is empty")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %s: %w", filePath, err)
	}

	return ParseSources(data)
}

// ParseSources разбирает YAML и проверяет каждую запись. Ошибка называет источник.
func ParseSources(data []byte) ([]SourceConfig, error) {
	var file sourcesFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse sources YAML: %w", err)
	}

	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	seen := make(map[string]bool, len(file.Sources))
	for i := range file.Sources {
		src := &file.Sources[i]
		src.Name = strings.TrimSpace(src.Name)
		src.BaseURL = strings.TrimSpace(src.BaseURL)

		if err := validateSource(src); err != nil {
			label := src.Name
			if label == "" {
				label = fmt.Sprintf("#%d", i+1)
			}
			return nil, fmt.Errorf("source %s: %w", label, err)
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("source %s: duplicate name", src.Name)
		}
		seen[src.Name] = true
	}

	return file.Sources, nil
}

func validateSource(s *SourceConfig) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", s.BaseURL)
	}

	switch s.RenderMode() {
	case RenderHTTP, RenderBrowser:
	default:
		return fmt.Errorf("render must be 'http' or 'browser', got %q", s.Render)
	}

	switch s.Locale {
	case "", "en", "pl", "ru":
	default:
		return fmt.Errorf("unsupported locale %q", s.Locale)
	}

	required := []struct {
		key, value string
	}{
		{"selectors.container", s.Selectors.Container},
		{"selectors.title", s.Selectors.Title},
		{"selectors.link", s.Selectors.Link},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}

	all := map[string]string{
		"container":   s.Selectors.Container,
		"title":       s.Selectors.Title,
		"description": s.Selectors.Description,
		"image":       s.Selectors.Image,
		"date":        s.Selectors.Date,
		"link":        s.Selectors.Link,
	}
	for key, sel := range all {
		if sel == "" {
			continue
		}
		if err := ValidateSelector(sel); err != nil {
			return fmt.Errorf("selectors.%s: %w", key, err)
		}
	}

	// Трансформеры не валидируются здесь: ошибка компиляции не фатальна,
	// поле просто остаётся без преобразования. См. TransformerWarnings.
	return nil
}

// TransformerWarnings описания трансформеров, которые при сборке будут
// проигнорированы: неизвестное поле или шаг, который не компилируется.
// Порядок стабильный: по полю, затем по номеру шага.
func TransformerWarnings(s SourceConfig) []string {
	fields := make([]string, 0, len(s.Transformers))
	for field := range s.Transformers {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var warnings []string
	for _, field := range fields {
		if !transform.IsKnownField(field) {
			warnings = append(warnings, fmt.Sprintf("%s: transformers.%s: unsupported field", s.Name, field))
			continue
		}
		for i, step := range s.Transformers[field] {
			if err := transform.Validate(step); err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: transformers.%s[%d]: %v", s.Name, field, i, err))
			}
		}
	}
	return warnings
}

// ValidateSelector компилирует CSS или XPath выражение
func ValidateSelector(sel string) error {
	sel = strings.TrimSpace(sel)
	if expr, ok := strings.CutPrefix(sel, XPathPrefix); ok {
		if _, err := xpath.Compile(strings.TrimSpace(expr)); err != nil {
			return fmt.Errorf("invalid xpath %q: %w", expr, err)
		}
		return nil
	}
	if _, err := cascadia.Compile(sel); err != nil {
		return fmt.Errorf("invalid css selector %q: %w", sel, err)
	}
	return nil
}

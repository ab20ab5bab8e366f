package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"

	"daily-news-parser/internal/config"
)

// Selector скомпилированный CSS или XPath ("xpath:" префикс) селектор.
// XPath внутри фрагмента должен быть относительным: ".//a", а не "//a".
type Selector struct {
	raw   string
	css   cascadia.Selector
	xpath *xpath.Expr
}

// CompileSelector пустая строка даёт nil: поле просто не извлекается
func CompileSelector(raw string) (*Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if expr, ok := strings.CutPrefix(raw, config.XPathPrefix); ok {
		compiled, err := xpath.Compile(strings.TrimSpace(expr))
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
		}
		return &Selector{raw: raw, xpath: compiled}, nil
	}

	compiled, err := cascadia.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid css selector %q: %w", raw, err)
	}
	return &Selector{raw: raw, css: compiled}, nil
}

func (s *Selector) String() string {
	if s == nil {
		return ""
	}
	return s.raw
}

// First первый потомок root, подходящий под селектор. Пустая выборка, если нет.
func (s *Selector) First(root *goquery.Selection) *goquery.Selection {
	if s == nil {
		return root.FindNodes()
	}

	if s.css != nil {
		return root.FindMatcher(s.css).First()
	}

	for _, node := range root.Nodes {
		if found := htmlquery.QuerySelector(node, s.xpath); found != nil {
			// FindNodes отбрасывает узлы вне root
			if sel := root.FindNodes(found); sel.Length() > 0 {
				return sel
			}
		}
	}
	return root.FindNodes()
}

package scraper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"daily-news-parser/internal/config"
)

// ErrContainerNotFound селектор контейнера ничего не нашёл на странице
var ErrContainerNotFound = errors.New("article container not found")

// Extractor извлекает сырые поля из листинга по селекторам источника
type Extractor struct {
	container   *Selector
	title       *Selector
	description *Selector
	image       *Selector
	date        *Selector
	link        *Selector
}

func NewExtractor(set config.SelectorSet) (*Extractor, error) {
	e := &Extractor{}

	fields := []struct {
		name string
		raw  string
		dst  **Selector
	}{
		{"container", set.Container, &e.container},
		{"title", set.Title, &e.title},
		{"description", set.Description, &e.description},
		{"image", set.Image, &e.image},
		{"date", set.Date, &e.date},
		{"link", set.Link, &e.link},
	}
	for _, f := range fields {
		sel, err := CompileSelector(f.raw)
		if err != nil {
			return nil, fmt.Errorf("selectors.%s: %w", f.name, err)
		}
		*f.dst = sel
	}

	if e.container == nil {
		return nil, fmt.Errorf("selectors.container is required")
	}
	return e, nil
}

// FindContainer первый элемент документа под селектором контейнера
func (e *Extractor) FindContainer(doc *goquery.Document) (*goquery.Selection, error) {
	container := e.container.First(doc.Selection)
	if container.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, e.container)
	}
	return container, nil
}

// Fragments прямые дочерние элементы контейнера, в порядке документа
func (e *Extractor) Fragments(container *goquery.Selection) []*goquery.Selection {
	children := container.Children()
	fragments := make([]*goquery.Selection, 0, children.Length())
	children.Each(func(_ int, s *goquery.Selection) {
		fragments = append(fragments, s)
	})
	return fragments
}

// ExtractFragment никогда не падает: отсутствующий узел даёт пустую строку
func (e *Extractor) ExtractFragment(fragment *goquery.Selection) RawFields {
	raw := RawFields{
		Title:       strings.TrimSpace(e.title.First(fragment).Text()),
		Description: strings.TrimSpace(e.description.First(fragment).Text()),
		Link:        strings.TrimSpace(e.link.First(fragment).AttrOr("href", "")),
	}

	if img := e.image.First(fragment); img.Length() > 0 {
		raw.Image = strings.TrimSpace(img.AttrOr("src", ""))
		if raw.Image == "" {
			raw.Image = strings.TrimSpace(img.AttrOr("data-src", ""))
		}
	}

	if dateEl := e.date.First(fragment); dateEl.Length() > 0 {
		raw.Date = strings.TrimSpace(dateEl.AttrOr("datetime", ""))
		if raw.Date == "" {
			raw.Date = strings.TrimSpace(dateEl.Text())
		}
	}

	return raw
}

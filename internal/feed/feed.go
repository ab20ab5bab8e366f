// Package feed фильтрация и постраничная выдача общей ленты: фильтр по
// категории, набор включённых источников, счётчики видимых и всех статей.
package feed

import (
	"slices"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/scraper"
	"daily-news-parser/internal/storage"
)

// Query параметры выдачи. Пустая Category и nil Sources не фильтруют.
// Sources не nil, но пустой, означает "все источники выключены".
type Query struct {
	Category string
	Sources  []string
	Offset   int
	Limit    int
}

// Page одна страница ленты
type Page struct {
	Articles []scraper.Article `json:"articles"`
	// Visible сколько статей показано с начала ленты, включая эту страницу
	Visible int  `json:"visible"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// Normalize приводит Offset/Limit к допустимым значениям
func (q Query) Normalize(defaultLimit, maxLimit int) Query {
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q
}

// ListOptions тот же запрос для хранилища
func (q Query) ListOptions() storage.ListOptions {
	return storage.ListOptions{
		Category: q.Category,
		Sources:  q.Sources,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
}

func (q Query) matches(a scraper.Article) bool {
	if q.Category != "" && a.Category != q.Category {
		return false
	}
	if q.Sources != nil && !slices.Contains(q.Sources, a.SourceName) {
		return false
	}
	return true
}

// Apply фильтрует уже отсортированную ленту и вырезает страницу.
// Порядок статей сохраняется.
func Apply(articles []scraper.Article, q Query) Page {
	filtered := make([]scraper.Article, 0, len(articles))
	for _, a := range articles {
		if q.matches(a) {
			filtered = append(filtered, a)
		}
	}
	return pageOf(filtered, len(filtered), q)
}

// PageFromStorage страница, уже вырезанная хранилищем, плюс общее число
func PageFromStorage(articles []scraper.Article, total int, q Query) Page {
	visible := min(q.Offset+len(articles), total)
	return Page{
		Articles: nonNil(articles),
		Visible:  visible,
		Total:    total,
		HasMore:  visible < total,
	}
}

func pageOf(filtered []scraper.Article, total int, q Query) Page {
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	return Page{
		Articles: nonNil(filtered[start:end]),
		Visible:  end,
		Total:    total,
		HasMore:  end < total,
	}
}

func nonNil(articles []scraper.Article) []scraper.Article {
	if articles == nil {
		return []scraper.Article{}
	}
	return articles
}

// Categories список категорий источников в порядке конфигурации, без повторов
func Categories(sources []config.SourceConfig) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.Category == "" || slices.Contains(out, s.Category) {
			continue
		}
		out = append(out, s.Category)
	}
	return out
}

package bookmarks

import (
	"context"
	"slices"
	"sync"

	"daily-news-parser/internal/scraper"
)

// MemoryStore закладки в памяти процесса, когда Redis не настроен
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	items map[string]scraper.Article
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]scraper.Article)}
}

func (s *MemoryStore) Add(_ context.Context, article scraper.Article) error {
	key, err := keyOf(article.ArticleURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; ok {
		return nil
	}
	s.items[key] = article
	s.order = append(s.order, key)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, articleURL string) error {
	key, err := keyOf(articleURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; !ok {
		return nil
	}
	delete(s.items, key)
	s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == key })
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]scraper.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]scraper.Article, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.items[key])
	}
	return out, nil
}

func (s *MemoryStore) IsBookmarked(_ context.Context, articleURL string) (bool, error) {
	key, err := keyOf(articleURL)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.items[key]
	return ok, nil
}

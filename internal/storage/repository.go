package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/scraper"
)

// DriverNone хранилище не настроено: статьи живут в памяти процесса
const DriverNone = "none"

// ListOptions фильтр и страница выборки. Пустые поля не фильтруют.
type ListOptions struct {
	Category string
	Sources  []string
	Limit    int
	Offset   int
}

// UpsertStats итог сохранения пачки статей
type UpsertStats struct {
	Inserted  int
	Updated   int
	Unchanged int
}

func (s *UpsertStats) Add(other UpsertStats) {
	s.Inserted += other.Inserted
	s.Updated += other.Updated
	s.Unchanged += other.Unchanged
}

// Repository хранилище статей. Ключ статьи: ArticleURL. Строка перезаписывается
// только при изменении контрольной суммы.
type Repository interface {
	UpsertArticles(ctx context.Context, articles []scraper.Article) (UpsertStats, error)
	ListArticles(ctx context.Context, opts ListOptions) ([]scraper.Article, error)
	CountArticles(ctx context.Context, opts ListOptions) (int, error)
	Close() error
}

// Factory открывает репозиторий конкретного драйвера
type Factory func(ctx context.Context, cfg *config.Config, logger *observability.Logger) (Repository, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// Register регистрирует драйвер; вызывается из init() пакетов mssql/postgres/mongodb
func Register(driver string, factory Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if factory == nil {
		panic("storage: Register factory is nil")
	}
	if _, dup := drivers[driver]; dup {
		panic("storage: Register called twice for driver " + driver)
	}
	drivers[driver] = factory
}

// Open репозиторий по storage.driver. Драйвер должен быть импортирован.
func Open(ctx context.Context, cfg *config.Config, logger *observability.Logger) (Repository, error) {
	driver := cfg.Storage.Driver
	if driver == "" || driver == DriverNone {
		return NewMemoryRepository(), nil
	}

	driversMu.RLock()
	factory, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown storage driver %q (forgotten import?)", driver)
	}

	repo, err := factory(ctx, cfg, logger.With("storage", driver))
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", driver, err)
	}
	return repo, nil
}

// Matches статья проходит фильтр opts (без учёта страницы)
func (o ListOptions) Matches(a scraper.Article) bool {
	if o.Category != "" && a.Category != o.Category {
		return false
	}
	if len(o.Sources) == 0 {
		return true
	}
	for _, s := range o.Sources {
		if s == a.SourceName {
			return true
		}
	}
	return false
}

// MemoryRepository хранилище в памяти (driver: none и тесты)
type MemoryRepository struct {
	mu       sync.RWMutex
	articles map[string]scraper.Article
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{articles: make(map[string]scraper.Article)}
}

func (m *MemoryRepository) UpsertArticles(_ context.Context, articles []scraper.Article) (UpsertStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats UpsertStats
	for _, a := range articles {
		existing, ok := m.articles[a.ArticleURL]
		switch {
		case !ok:
			stats.Inserted++
		case existing.Checksum != a.Checksum:
			stats.Updated++
		default:
			stats.Unchanged++
			continue
		}
		m.articles[a.ArticleURL] = a
	}
	return stats, nil
}

func (m *MemoryRepository) ListArticles(_ context.Context, opts ListOptions) ([]scraper.Article, error) {
	m.mu.RLock()
	matched := make([]scraper.Article, 0, len(m.articles))
	for _, a := range m.articles {
		if opts.Matches(a) {
			matched = append(matched, a)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].ArticleURL < matched[j].ArticleURL
	})

	if opts.Offset >= len(matched) {
		return []scraper.Article{}, nil
	}
	matched = matched[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (m *MemoryRepository) CountArticles(_ context.Context, opts ListOptions) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, a := range m.articles {
		if opts.Matches(a) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) Close() error {
	return nil
}

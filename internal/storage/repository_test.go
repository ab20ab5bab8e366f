package storage

import (
	"context"
	"testing"
	"time"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/scraper"
)

func testArticle(url, source, category, checksum string, day int) scraper.Article {
	return scraper.Article{
		ID:         url,
		ArticleURL: url,
		Title:      url,
		SourceName: source,
		Category:   category,
		Checksum:   checksum,
		Date:       time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryRepositoryUpsert(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	stats, err := repo.UpsertArticles(ctx, []scraper.Article{
		testArticle("https://a/1", "A", "Tech", "c1", 1),
		testArticle("https://a/2", "A", "Tech", "c2", 2),
	})
	if err != nil {
		t.Fatalf("UpsertArticles: %v", err)
	}
	if stats != (UpsertStats{Inserted: 2}) {
		t.Errorf("first upsert stats = %+v", stats)
	}

	stats, _ = repo.UpsertArticles(ctx, []scraper.Article{
		testArticle("https://a/1", "A", "Tech", "c1", 1),
		testArticle("https://a/2", "A", "Tech", "changed", 2),
		testArticle("https://a/3", "A", "Tech", "c3", 3),
	})
	if stats != (UpsertStats{Inserted: 1, Updated: 1, Unchanged: 1}) {
		t.Errorf("second upsert stats = %+v", stats)
	}
}

func TestMemoryRepositoryList(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, _ = repo.UpsertArticles(ctx, []scraper.Article{
		testArticle("https://a/1", "A", "Tech", "1", 18),
		testArticle("https://a/2", "A", "Tech", "2", 20),
		testArticle("https://b/1", "B", "Science", "3", 19),
		testArticle("https://c/1", "C", "Tech", "4", 21),
	})

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"all by date", ListOptions{}, []string{"https://c/1", "https://a/2", "https://b/1", "https://a/1"}},
		{"category", ListOptions{Category: "Tech"}, []string{"https://c/1", "https://a/2", "https://a/1"}},
		{"sources", ListOptions{Sources: []string{"A", "B"}}, []string{"https://a/2", "https://b/1", "https://a/1"}},
		{"page", ListOptions{Limit: 2, Offset: 1}, []string{"https://a/2", "https://b/1"}},
		{"offset past end", ListOptions{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListArticles(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListArticles: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d articles, want %d", len(got), len(tt.want))
			}
			for i, url := range tt.want {
				if got[i].ArticleURL != url {
					t.Errorf("position %d = %s, want %s", i, got[i].ArticleURL, url)
				}
			}
		})
	}

	if n, _ := repo.CountArticles(ctx, ListOptions{Category: "Tech", Limit: 1}); n != 3 {
		t.Errorf("CountArticles ignores paging, got %d", n)
	}
}

func TestOpen(t *testing.T) {
	cfg := config.DefaultConfig()
	logger := observability.NewNopLogger()

	repo, err := Open(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Open none: %v", err)
	}
	if _, ok := repo.(*MemoryRepository); !ok {
		t.Errorf("driver none should give memory repository, got %T", repo)
	}

	cfg.Storage.Driver = "cassandra"
	if _, err := Open(context.Background(), cfg, logger); err == nil {
		t.Errorf("unknown driver must fail")
	}
}

package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/scraper"
)

type fakeSource struct {
	src   config.SourceConfig
	fetch func(ctx context.Context) ([]scraper.Article, error)
}

func (f *fakeSource) Source() config.SourceConfig { return f.src }

func (f *fakeSource) FetchDetailed(ctx context.Context) ([]scraper.Article, error) {
	return f.fetch(ctx)
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
}

func article(source, slug string, date time.Time) scraper.Article {
	url := fmt.Sprintf("https://%s.example.com/%s", source, slug)
	return scraper.Article{ID: url, ArticleURL: url, Title: slug, Date: date, SourceName: source}
}

func returning(name string, articles ...scraper.Article) *fakeSource {
	return &fakeSource{
		src: config.SourceConfig{Name: name, BaseURL: "https://" + name + ".example.com/"},
		fetch: func(context.Context) ([]scraper.Article, error) {
			return articles, nil
		},
	}
}

func newTestAggregator(maxConcurrent int, timeout time.Duration, opts ...Option) *Aggregator {
	cfg := &config.Config{Aggregator: config.AggregatorConfig{
		MaxConcurrent:   maxConcurrent,
		SourceTimeoutMS: int(timeout / time.Millisecond),
	}}
	return New(cfg, observability.NewNopLogger(), opts...)
}

func TestAggregateOrdersByDateDesc(t *testing.T) {
	a := newTestAggregator(0, time.Second)

	result := a.Aggregate(context.Background(), []SourceFetcher{
		returning("a", article("a", "18", day(18)), article("a", "20", day(20))),
		returning("b", article("b", "19", day(19))),
	})

	want := []time.Time{day(20), day(19), day(18)}
	if len(result.Articles) != len(want) {
		t.Fatalf("got %d articles, want %d", len(result.Articles), len(want))
	}
	for i, w := range want {
		if !result.Articles[i].Date.Equal(w) {
			t.Errorf("article %d date = %v, want %v", i, result.Articles[i].Date, w)
		}
	}
	if result.RunID == "" {
		t.Errorf("run id is empty")
	}
}

func TestAggregateOneTransportFailure(t *testing.T) {
	const (
		n = 5
		k = 3
	)

	var fetchers []SourceFetcher
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("s%d", i)
		if i == 2 {
			src := config.SourceConfig{Name: name, BaseURL: "https://down.example.com/"}
			fetchers = append(fetchers, &fakeSource{
				src: src,
				fetch: func(context.Context) ([]scraper.Article, error) {
					return []scraper.Article{scraper.FallbackArticle(src, day(1))}, errors.New("HTTP 503")
				},
			})
			continue
		}
		var articles []scraper.Article
		for j := 0; j < k; j++ {
			articles = append(articles, article(name, fmt.Sprint(j), day(10+i+j)))
		}
		fetchers = append(fetchers, returning(name, articles...))
	}

	result := newTestAggregator(2, time.Second).Aggregate(context.Background(), fetchers)

	if got, want := len(result.Articles), (n-1)*k+1; got != want {
		t.Errorf("got %d records, want %d", got, want)
	}
	for i := 1; i < len(result.Articles); i++ {
		if result.Articles[i].Date.After(result.Articles[i-1].Date) {
			t.Fatalf("not sorted at %d", i)
		}
	}

	failed := result.FailedSources()
	if len(failed) != 1 || failed[0] != "s2" {
		t.Errorf("failed sources = %v, want [s2]", failed)
	}
	for _, s := range result.Statuses {
		if s.Loading {
			t.Errorf("status %s still loading", s.Name)
		}
		if s.Name == "s2" && s.Error != "HTTP 503" {
			t.Errorf("failed status message = %q", s.Error)
		}
	}
}

func TestAggregatePanickingSource(t *testing.T) {
	boom := &fakeSource{
		src: config.SourceConfig{Name: "boom"},
		fetch: func(context.Context) ([]scraper.Article, error) {
			panic("selector engine crashed")
		},
	}

	result := newTestAggregator(0, time.Second).Aggregate(context.Background(), []SourceFetcher{
		boom,
		returning("ok", article("ok", "1", day(1))),
	})

	if len(result.Articles) != 1 || result.Articles[0].SourceName != "ok" {
		t.Errorf("panicking source must contribute nothing, got %+v", result.Articles)
	}
	if result.Statuses[0].Name != "boom" || !result.Statuses[0].Failed || result.Statuses[0].Error == "" {
		t.Errorf("boom status = %+v", result.Statuses[0])
	}
	if result.Statuses[1].Failed {
		t.Errorf("other source affected: %+v", result.Statuses[1])
	}
}

func TestAggregateSourceTimeout(t *testing.T) {
	slow := &fakeSource{
		src: config.SourceConfig{Name: "slow"},
		fetch: func(ctx context.Context) ([]scraper.Article, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	start := time.Now()
	result := newTestAggregator(0, 50*time.Millisecond).Aggregate(context.Background(), []SourceFetcher{
		slow,
		returning("fast", article("fast", "1", day(1))),
	})

	if time.Since(start) > 2*time.Second {
		t.Fatalf("aggregation blocked by slow source")
	}
	if !result.Statuses[0].Failed || result.Statuses[1].Failed {
		t.Errorf("statuses = %+v", result.Statuses)
	}
	if len(result.Articles) != 1 {
		t.Errorf("got %d articles", len(result.Articles))
	}
}

func TestAggregateRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32

	var fetchers []SourceFetcher
	for i := 0; i < 8; i++ {
		fetchers = append(fetchers, &fakeSource{
			src: config.SourceConfig{Name: fmt.Sprintf("s%d", i)},
			fetch: func(context.Context) ([]scraper.Article, error) {
				cur := inFlight.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				inFlight.Add(-1)
				return nil, nil
			},
		})
	}

	newTestAggregator(3, time.Second).Aggregate(context.Background(), fetchers)

	if peak.Load() > 3 {
		t.Errorf("peak concurrency %d exceeds limit 3", peak.Load())
	}
}

func TestAggregateSkipsDisabledAndReportsStatus(t *testing.T) {
	disabled := false
	off := returning("off", article("off", "1", day(1)))
	off.src.Enabled = &disabled

	var mu sync.Mutex
	var seen []string
	a := newTestAggregator(0, time.Second, WithStatusCallback(func(runID string, s Status) {
		mu.Lock()
		defer mu.Unlock()
		if runID == "" {
			t.Errorf("empty run id in callback")
		}
		seen = append(seen, s.Name)
	}))

	result := a.Aggregate(context.Background(), []SourceFetcher{
		off,
		returning("on", article("on", "1", day(2))),
	})

	if len(result.Statuses) != 1 || result.Statuses[0].Name != "on" || result.Statuses[0].Articles != 1 {
		t.Errorf("statuses = %+v", result.Statuses)
	}
	if len(seen) != 1 || seen[0] != "on" {
		t.Errorf("callback saw %v", seen)
	}
}

func TestStatusBoardResolvesOnce(t *testing.T) {
	b := NewStatusBoard([]string{"a", "b"})
	if !b.Loading() {
		t.Fatalf("new board must be loading")
	}

	if _, ok := b.Resolve(0, Status{Failed: true, Error: "x"}); !ok {
		t.Fatalf("first resolve rejected")
	}
	if _, ok := b.Resolve(0, Status{}); ok {
		t.Errorf("second resolve of the same slot accepted")
	}
	if _, ok := b.Resolve(5, Status{}); ok {
		t.Errorf("out of range slot accepted")
	}
	if !b.Loading() {
		t.Errorf("slot b still pending, board must be loading")
	}

	b.Resolve(1, Status{Articles: 4})
	snap := b.Snapshot()
	if b.Loading() || !snap[0].Failed || snap[1].Articles != 4 || snap[1].Name != "b" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSortByDateDescStable(t *testing.T) {
	same := day(5)
	articles := []scraper.Article{
		article("x", "first", same),
		article("x", "newer", day(6)),
		article("x", "second", same),
	}
	SortByDateDesc(articles)

	got := []string{articles[0].Title, articles[1].Title, articles[2].Title}
	want := []string{"newer", "first", "second"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

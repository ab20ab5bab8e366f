package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/feed"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/scraper"
	"daily-news-parser/internal/storage"
)

const listing = `<ul class="news">
  <li><a href="https://good.example.com/one">One</a><time>2024-03-20</time></li>
  <li><a href="https://good.example.com/two">Two</a><time>2024-03-19</time></li>
</ul>`

func testSources() []config.SourceConfig {
	selectors := config.SelectorSet{Container: "ul.news", Title: "a", Link: "a", Date: "time"}
	return []config.SourceConfig{
		{Name: "Good", Category: "Tech", BaseURL: "https://good.example.com/", DateFormat: "YYYY-MM-DD", Selectors: selectors},
		{Name: "Broken", Category: "Tech", BaseURL: "https://broken.example.com/", Selectors: selectors},
	}
}

func testPages() Pages {
	return Pages{
		HTTP: scraper.PageFetcherFunc(func(_ context.Context, url string) ([]byte, error) {
			if strings.Contains(url, "broken") {
				return nil, errors.New("connection refused")
			}
			return []byte(listing), nil
		}),
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *storage.MemoryRepository, feed.Snapshot) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Normalize.Timezone = "UTC"
	logger := observability.NewNopLogger()

	repo := storage.NewMemoryRepository()
	snap := feed.NewSnapshot(nil, "", 0, logger)

	o, err := NewOrchestrator(cfg, logger, testSources(), testPages(), repo, snap)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o, repo, snap
}

func TestRunCycle(t *testing.T) {
	o, repo, snap := newTestOrchestrator(t)
	ctx := context.Background()

	stats, err := o.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Sources != 2 || stats.Articles != 3 {
		t.Errorf("stats = %+v, want 2 sources and 3 articles", stats)
	}
	if len(stats.FailedSources) != 1 || stats.FailedSources[0] != "Broken" {
		t.Errorf("FailedSources = %v", stats.FailedSources)
	}
	if stats.Stored.Inserted != 2 {
		t.Errorf("Stored = %+v, placeholder must not be persisted", stats.Stored)
	}

	n, err := repo.CountArticles(ctx, storage.ListOptions{})
	if err != nil || n != 2 {
		t.Errorf("repository holds %d articles (%v), want 2", n, err)
	}

	result, err := snap.Get(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(result.Articles) != 3 {
		t.Errorf("snapshot must keep the placeholder, got %d articles", len(result.Articles))
	}

	statuses := o.Statuses()
	if len(statuses) != 2 || statuses[0].Name != "Good" || statuses[0].Failed || !statuses[1].Failed {
		t.Errorf("Statuses() = %+v", statuses)
	}
	for _, st := range statuses {
		if st.Loading {
			t.Errorf("%s still loading after cycle", st.Name)
		}
	}

	// второй цикл: те же статьи не меняются
	stats, err = o.RunCycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Stored.Unchanged != 2 || stats.Stored.Inserted != 0 {
		t.Errorf("second cycle Stored = %+v", stats.Stored)
	}
}

func TestRunCycleRejectsOverlap(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	o.running.Lock()
	defer o.running.Unlock()

	if _, err := o.RunCycle(context.Background()); !errors.Is(err, ErrCycleRunning) {
		t.Errorf("RunCycle error = %v, want ErrCycleRunning", err)
	}
}

type countingRunner struct {
	calls atomic.Int32
	once  sync.Once
	first chan struct{}
}

func (r *countingRunner) RunCycle(context.Context) (*CycleStats, error) {
	r.calls.Add(1)
	r.once.Do(func() { close(r.first) })
	return &CycleStats{}, nil
}

func TestSchedulerOneshot(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scheduler.Mode = ModeOneshot

	runner := &countingRunner{first: make(chan struct{})}
	s, err := NewScheduler(cfg, runner, observability.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if runner.calls.Load() != 1 {
		t.Errorf("oneshot ran %d cycles", runner.calls.Load())
	}
}

func TestSchedulerIntervalRunsImmediately(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scheduler.Mode = ModeInterval
	cfg.Scheduler.IntervalS = 3600

	runner := &countingRunner{first: make(chan struct{})}
	s, err := NewScheduler(cfg, runner, observability.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-runner.first:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not start")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNewSchedulerRejectsBadCron(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scheduler.Mode = ModeCron
	cfg.Scheduler.CronExpr = "every minute"

	if _, err := NewScheduler(cfg, &countingRunner{}, observability.NewNopLogger()); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/normalize"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/transform"
)

const xdaListing = `<html><body>
<div class="listing">
  <article>
    <h3 class="title"><a href="/pixel-update/">Pixel   update
      rolls out</a></h3>
    <p class="excerpt">March` + "\u00a0" + `patch</p>
    <img data-src="/img/1.jpg">
    <time datetime="2024-03-20T10:00:00Z">Mar 20</time>
  </article>
  <article>
    <h3 class="title"><a href="https://www.xda-developers.com/galaxy-s24/">Galaxy S24 review</a></h3>
    <img src="https://cdn.example.com/2.jpg" data-src="/ignored.jpg">
    <time>20.03.2024</time>
  </article>
  <article><h3 class="title"><a href="#comments">Comments</a></h3></article>
  <article><h3 class="title"><a href="/">Home</a></h3></article>
  <article><h3 class="title"></h3><a href="/no-title/">x</a></article>
  <div class="ad">Advertisement</div>
</div>
</body></html>`

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func xdaSource() config.SourceConfig {
	return config.SourceConfig{
		Name:       "XDA",
		Category:   "Technology",
		BaseURL:    "https://www.xda-developers.com/",
		DateFormat: "DD.MM.YYYY",
		Selectors: config.SelectorSet{
			Container:   "div.listing",
			Title:       "h3.title",
			Description: "p.excerpt",
			Image:       "img",
			Date:        "time",
			Link:        "h3.title a",
		},
		Transformers: map[string][]transform.Step{
			transform.FieldArticleURL: {{Op: "prepend_domain", Args: []string{"https://www.xda-developers.com"}}},
			transform.FieldImageURL:   {{Op: "resolve_url"}},
		},
	}
}

func newTestSourceFetcher(t *testing.T, src config.SourceConfig, pages PageFetcher) *SourceFetcher {
	t.Helper()
	cfg := &config.Config{Normalize: config.NormalizeConfig{TrimNBSP: true, CollapseSpaces: true}}
	return newSourceFetcherWithConfig(t, cfg, src, pages)
}

func newSourceFetcherWithConfig(t *testing.T, cfg *config.Config, src config.SourceConfig, pages PageFetcher) *SourceFetcher {
	t.Helper()

	logger := observability.NewNopLogger()
	dates := normalize.NewDateNormalizer(logger,
		normalize.WithClock(func() time.Time { return testNow }),
		normalize.WithLocation(time.UTC),
	)

	f, err := NewSourceFetcher(src, pages, normalize.NewNormalizer(cfg), dates, logger)
	if err != nil {
		t.Fatalf("NewSourceFetcher: %v", err)
	}
	return f
}

func staticPage(html string) PageFetcher {
	return PageFetcherFunc(func(context.Context, string) ([]byte, error) {
		return []byte(html), nil
	})
}

func TestFetchListing(t *testing.T) {
	f := newTestSourceFetcher(t, xdaSource(), staticPage(xdaListing))

	articles, err := f.FetchDetailed(context.Background())
	if err != nil {
		t.Fatalf("FetchDetailed error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2: %+v", len(articles), articles)
	}

	first := articles[0]
	if first.Title != "Pixel update rolls out" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Description != "March patch" {
		t.Errorf("description = %q", first.Description)
	}
	if first.ArticleURL != "https://www.xda-developers.com/pixel-update/" || first.ID != first.ArticleURL {
		t.Errorf("url = %q id = %q", first.ArticleURL, first.ID)
	}
	if first.ImageURL != "https://www.xda-developers.com/img/1.jpg" {
		t.Errorf("image from data-src = %q", first.ImageURL)
	}
	if got := normalize.FormatISO(first.Date); got != "2024-03-20T10:00:00.000Z" {
		t.Errorf("datetime attribute date = %s", got)
	}
	if first.SourceName != "XDA" || first.Category != "Technology" {
		t.Errorf("source fields = %q %q", first.SourceName, first.Category)
	}
	if first.Checksum == "" || first.Placeholder {
		t.Errorf("checksum %q placeholder %v", first.Checksum, first.Placeholder)
	}

	second := articles[1]
	if second.ImageURL != "https://cdn.example.com/2.jpg" {
		t.Errorf("src must win over data-src, got %q", second.ImageURL)
	}
	if got := normalize.FormatISO(second.Date); got != "2024-03-20T23:59:59.000Z" {
		t.Errorf("text date with format = %s", got)
	}
	if second.Description != "" {
		t.Errorf("missing description should be empty, got %q", second.Description)
	}

	for _, a := range articles {
		if !IsValid(a, xdaSource().BaseURL) {
			t.Errorf("invalid article in output: %+v", a)
		}
	}
}

func TestFetchKeepsFullDescriptionWithDefaults(t *testing.T) {
	excerpt := strings.TrimSpace(strings.Repeat("long excerpt word ", 30))
	page := `<div class="listing"><article>
<h3 class="title"><a href="/long/">Long one</a></h3>
<p class="excerpt">  ` + excerpt + `  </p>
</article></div>`

	f := newSourceFetcherWithConfig(t, config.DefaultConfig(), xdaSource(), staticPage(page))
	articles, err := f.FetchDetailed(context.Background())
	if err != nil {
		t.Fatalf("FetchDetailed error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	if articles[0].Description != excerpt {
		t.Errorf("description altered: got %d chars, want %d", len(articles[0].Description), len(excerpt))
	}
}

func TestFetchTruncatesDescriptionWhenConfigured(t *testing.T) {
	excerpt := strings.TrimSpace(strings.Repeat("word ", 40))
	page := `<div class="listing"><article>
<h3 class="title"><a href="/long/">Long one</a></h3>
<p class="excerpt">` + excerpt + `</p>
</article></div>`

	cfg := config.DefaultConfig()
	cfg.Normalize.MaxPreviewChars = 20
	f := newSourceFetcherWithConfig(t, cfg, xdaSource(), staticPage(page))
	articles, err := f.FetchDetailed(context.Background())
	if err != nil {
		t.Fatalf("FetchDetailed error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	if got := articles[0].Description; !strings.HasSuffix(got, "…") || len([]rune(got)) > 20 {
		t.Errorf("description = %q, want cut to 20 runes with ellipsis", got)
	}
}

func TestFetchFailuresReturnPlaceholder(t *testing.T) {
	transportErr := errors.New("connection refused")

	tests := []struct {
		name    string
		pages   PageFetcher
		wantErr error
	}{
		{
			name: "transport error",
			pages: PageFetcherFunc(func(context.Context, string) ([]byte, error) {
				return nil, transportErr
			}),
			wantErr: transportErr,
		},
		{
			name:    "container missing",
			pages:   staticPage(`<html><body><div class="other"><article>x</article></div></body></html>`),
			wantErr: ErrContainerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := xdaSource()
			f := newTestSourceFetcher(t, src, tt.pages)

			articles, err := f.FetchDetailed(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if len(articles) != 1 {
				t.Fatalf("got %d records, want exactly one placeholder", len(articles))
			}

			p := articles[0]
			if p.Title != "XDA - Temporary Unavailable" {
				t.Errorf("title = %q", p.Title)
			}
			if p.Description != "Unable to fetch articles at this time. Please try again later." {
				t.Errorf("description = %q", p.Description)
			}
			if p.ImageURL != "https://picsum.photos/800/400" {
				t.Errorf("image = %q", p.ImageURL)
			}
			if p.ArticleURL != src.BaseURL || p.ID != src.BaseURL {
				t.Errorf("placeholder url = %q id = %q", p.ArticleURL, p.ID)
			}
			if !p.Date.Equal(testNow) || p.DateConfidence != normalize.ConfidenceAssumed {
				t.Errorf("placeholder date = %v %s", p.Date, p.DateConfidence)
			}
			if !p.Placeholder || p.Category != "Technology" || p.SourceName != "XDA" {
				t.Errorf("placeholder fields: %+v", p)
			}

			if got := f.Fetch(context.Background()); len(got) != 1 || got[0].Title != p.Title {
				t.Errorf("Fetch should return the same placeholder, got %+v", got)
			}
		})
	}
}

func TestFetchEmptyContainer(t *testing.T) {
	f := newTestSourceFetcher(t, xdaSource(), staticPage(`<div class="listing"></div>`))

	articles, err := f.FetchDetailed(context.Background())
	if err != nil {
		t.Fatalf("empty container is not a failure: %v", err)
	}
	if len(articles) != 0 {
		t.Errorf("got %d articles, want 0", len(articles))
	}
}

func TestFetchRequestsBaseURL(t *testing.T) {
	var requested string
	pages := PageFetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		requested = url
		return []byte(xdaListing), nil
	})

	f := newTestSourceFetcher(t, xdaSource(), pages)
	f.Fetch(context.Background())

	if requested != "https://www.xda-developers.com/" {
		t.Errorf("requested %q", requested)
	}
}

func TestFetchWithXPathSelectors(t *testing.T) {
	src := config.SourceConfig{
		Name:       "Spiders Web",
		Category:   "Tech PL",
		BaseURL:    "https://spidersweb.pl/",
		DateFormat: "DD.MM 'r.'",
		Locale:     "pl",
		Selectors: config.SelectorSet{
			Container: "xpath://ul[@id='posts']",
			Title:     "xpath:.//h2",
			Link:      "xpath:.//h2/a",
			Date:      "xpath:.//span[contains(@class,'date')]",
		},
	}
	html := `<ul id="posts">
	  <li><h2><a href="https://spidersweb.pl/2024/03/nowy-telefon">Nowy telefon</a></h2><span class="post-date">15.03 r.</span></li>
	  <li><h2><a href="https://spidersweb.pl/2024/02/stary">Stary wpis</a></h2></li>
	</ul>`

	f := newTestSourceFetcher(t, src, staticPage(html))
	articles, err := f.FetchDetailed(context.Background())
	if err != nil {
		t.Fatalf("FetchDetailed: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(articles))
	}

	if got := normalize.FormatISO(articles[0].Date); got != "2024-03-15T23:59:59.000Z" {
		t.Errorf("polish date = %s", got)
	}
	if articles[1].DateConfidence != normalize.ConfidenceAssumed || !articles[1].Date.Equal(testNow) {
		t.Errorf("missing date should fall back to now, got %v %s", articles[1].Date, articles[1].DateConfidence)
	}
}

func TestIsValid(t *testing.T) {
	base := "https://www.xda-developers.com/"

	tests := []struct {
		name  string
		title string
		url   string
		want  bool
	}{
		{"ok", "Title", "https://www.xda-developers.com/a/", true},
		{"empty title", "", "https://www.xda-developers.com/a/", false},
		{"empty url", "Title", "", false},
		{"fragment", "Title", "https://www.xda-developers.com/a/#comments", false},
		{"base url", "Title", base, false},
		{"base url without slash", "Title", strings.TrimSuffix(base, "/"), false},
		{"base url host case", "Title", "https://WWW.xda-developers.com", false},
		{"base url with query", "Title", base + "?page=2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Article{Title: tt.title, ArticleURL: tt.url}
			if got := IsValid(a, base); got != tt.want {
				t.Errorf("IsValid = %v, want %v", got, tt.want)
			}
		})
	}
}

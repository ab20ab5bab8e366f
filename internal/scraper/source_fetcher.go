package scraper

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"daily-news-parser/internal/checksum"
	"daily-news-parser/internal/config"
	"daily-news-parser/internal/normalize"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/transform"
)

const (
	fallbackTitleSuffix = " - Temporary Unavailable"
	fallbackDescription = "Unable to fetch articles at this time. Please try again later."
	fallbackImageURL    = "https://picsum.photos/800/400"
)

// PageFetcher загружает HTML страницы. Не-2xx ответ должен возвращаться ошибкой.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// PageFetcherFunc адаптер функции к PageFetcher
type PageFetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f PageFetcherFunc) FetchPage(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// SourceFetcher превращает листинг одного источника в список записей
type SourceFetcher struct {
	src        config.SourceConfig
	pages      PageFetcher
	extractor  *Extractor
	transforms transform.Set
	text       *normalize.Normalizer
	dates      *normalize.DateNormalizer
	checksum   *checksum.Generator
	logger     *observability.Logger
}

func NewSourceFetcher(
	src config.SourceConfig,
	pages PageFetcher,
	text *normalize.Normalizer,
	dates *normalize.DateNormalizer,
	logger *observability.Logger,
) (*SourceFetcher, error) {
	extractor, err := NewExtractor(src.Selectors)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name, err)
	}

	logger = logger.With("source", src.Name)

	return &SourceFetcher{
		src:        src,
		pages:      pages,
		extractor:  extractor,
		transforms: transform.CompileSet(src.Transformers, src.BaseURL, logger),
		text:       text,
		dates:      dates,
		checksum:   checksum.NewGenerator(),
		logger:     logger,
	}, nil
}

// Source конфигурация, с которой создан фетчер
func (f *SourceFetcher) Source() config.SourceConfig {
	return f.src
}

// Fetch никогда не возвращает ошибку: при сбое отдаётся одна запись-заглушка
func (f *SourceFetcher) Fetch(ctx context.Context) []Article {
	articles, _ := f.FetchDetailed(ctx)
	return articles
}

// FetchDetailed то же, что Fetch, плюс причина сбоя. Ошибка не nil
// ровно тогда, когда результат состоит из заглушки.
func (f *SourceFetcher) FetchDetailed(ctx context.Context) ([]Article, error) {
	start := time.Now()

	articles, err := f.fetch(ctx)
	if err != nil {
		f.logger.Error("Failed to fetch articles, using placeholder",
			"url", f.src.BaseURL,
			"error", err.Error(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return []Article{f.fallback()}, err
	}

	f.logger.Info("Source fetched",
		"articles", len(articles),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return articles, nil
}

func (f *SourceFetcher) fetch(ctx context.Context) ([]Article, error) {
	body, err := f.pages.FetchPage(ctx, f.src.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	container, err := f.extractor.FindContainer(doc)
	if err != nil {
		return nil, err
	}

	fragments := f.extractor.Fragments(container)
	articles := make([]Article, 0, len(fragments))
	skipped := 0

	for i, fragment := range fragments {
		article := f.buildArticle(f.extractor.ExtractFragment(fragment))
		if !IsValid(article, f.src.BaseURL) {
			skipped++
			f.logger.Debug("Fragment skipped",
				"index", i,
				"title", article.Title,
				"url", article.ArticleURL,
			)
			continue
		}
		articles = append(articles, article)
	}

	if skipped > 0 {
		f.logger.Debug("Invalid fragments dropped", "skipped", skipped, "kept", len(articles))
	}
	return articles, nil
}

func (f *SourceFetcher) buildArticle(raw RawFields) Article {
	articleURL := f.transforms.Apply(transform.FieldArticleURL, raw.Link)
	imageURL := f.transforms.Apply(transform.FieldImageURL, raw.Image)
	rawDate := f.transforms.Apply(transform.FieldDate, raw.Date)

	date, confidence := f.dates.NormalizeWithConfidence(rawDate, normalize.Hint{
		Format: f.src.DateFormat,
		Locale: f.src.Locale,
		Source: f.src.Name,
	})

	article := Article{
		ID:             articleURL,
		Title:          f.text.CleanText(raw.Title),
		Description:    f.text.TruncatePreview(f.text.CleanText(raw.Description)),
		Date:           date,
		DateConfidence: confidence,
		ImageURL:       imageURL,
		ArticleURL:     articleURL,
		SourceName:     f.src.Name,
		Category:       f.src.Category,
	}
	article.Checksum = f.checksum.GenerateContentHash(article.ArticleURL, article.Title, article.Description, article.Date)
	return article
}

func (f *SourceFetcher) fallback() Article {
	article := FallbackArticle(f.src, f.dates.Now())
	article.Checksum = f.checksum.GenerateContentHash(article.ArticleURL, article.Title, article.Description, article.Date)
	return article
}

// IsValid запись с заголовком и ссылкой, ссылка без "#" и не совпадает с листингом
func IsValid(a Article, baseURL string) bool {
	if a.Title == "" || a.ArticleURL == "" {
		return false
	}
	if strings.Contains(a.ArticleURL, "#") {
		return false
	}
	return !normalize.SameURL(a.ArticleURL, baseURL)
}

// FallbackArticle заглушка "источник временно недоступен"
func FallbackArticle(src config.SourceConfig, now time.Time) Article {
	return Article{
		ID:             src.BaseURL,
		Title:          src.Name + fallbackTitleSuffix,
		Description:    fallbackDescription,
		Date:           now,
		DateConfidence: normalize.ConfidenceAssumed,
		ImageURL:       fallbackImageURL,
		ArticleURL:     src.BaseURL,
		SourceName:     src.Name,
		Category:       src.Category,
		Placeholder:    true,
	}
}

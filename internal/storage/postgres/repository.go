package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/normalize"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/scraper"
	"daily-news-parser/internal/storage"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg *config.Config, logger *observability.Logger) (storage.Repository, error) {
		return NewRepository(ctx, cfg.Storage.DSN, cfg.GetCommandTimeout(), cfg.Storage.BatchSize, logger)
	})
}

// articleRow строка таблицы articles; URL является ключом
type articleRow struct {
	URL            string    `gorm:"primaryKey;size:1024"`
	Title          string    `gorm:"size:1000"`
	Description    string    `gorm:"type:text"`
	ImageURL       string    `gorm:"size:2048"`
	PublishedAt    time.Time `gorm:"index"`
	DateConfidence string    `gorm:"size:16"`
	SourceName     string    `gorm:"size:128;index"`
	Category       string    `gorm:"size:128;index"`
	Checksum       string    `gorm:"size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (articleRow) TableName() string { return "articles" }

type Repository struct {
	db             *gorm.DB
	commandTimeout time.Duration
	batchSize      int
	logger         *observability.Logger
}

func NewRepository(ctx context.Context, dsn string, commandTimeout time.Duration, batchSize int, logger *observability.Logger) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := db.WithContext(ctx).AutoMigrate(&articleRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate articles table: %w", err)
	}

	if batchSize <= 0 {
		batchSize = 100
	}
	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		batchSize:      batchSize,
		logger:         logger,
	}, nil
}

func rowFromArticle(a scraper.Article) articleRow {
	return articleRow{
		URL:            a.ArticleURL,
		Title:          strings.ToValidUTF8(a.Title, "\uFFFD"),
		Description:    strings.ToValidUTF8(a.Description, "\uFFFD"),
		ImageURL:       a.ImageURL,
		PublishedAt:    a.Date.UTC(),
		DateConfidence: string(a.DateConfidence),
		SourceName:     a.SourceName,
		Category:       a.Category,
		Checksum:       a.Checksum,
	}
}

func (r articleRow) article() scraper.Article {
	return scraper.Article{
		ID:             r.URL,
		Title:          r.Title,
		Description:    r.Description,
		Date:           r.PublishedAt.UTC(),
		DateConfidence: normalize.Confidence(r.DateConfidence),
		ImageURL:       r.ImageURL,
		ArticleURL:     r.URL,
		SourceName:     r.SourceName,
		Category:       r.Category,
		Checksum:       r.Checksum,
	}
}

// UpsertArticles по URL: вставка новых, обновление при смене checksum
func (r *Repository) UpsertArticles(ctx context.Context, articles []scraper.Article) (storage.UpsertStats, error) {
	var total storage.UpsertStats

	for start := 0; start < len(articles); start += r.batchSize {
		end := min(start+r.batchSize, len(articles))
		stats, err := r.upsertBatch(ctx, articles[start:end])
		if err != nil {
			return total, err
		}
		total.Add(stats)
	}
	return total, nil
}

func (r *Repository) upsertBatch(ctx context.Context, batch []scraper.Article) (storage.UpsertStats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var stats storage.UpsertStats
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range batch {
			row := rowFromArticle(a)

			var existing articleRow
			err := tx.Select("url", "checksum").Where("url = ?", row.URL).Take(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("insert %s: %w", row.URL, err)
				}
				stats.Inserted++
			case err != nil:
				return fmt.Errorf("lookup %s: %w", row.URL, err)
			case existing.Checksum == row.Checksum:
				stats.Unchanged++
			default:
				if err := tx.Model(&articleRow{}).Where("url = ?", row.URL).Updates(map[string]any{
					"title":           row.Title,
					"description":     row.Description,
					"image_url":       row.ImageURL,
					"published_at":    row.PublishedAt,
					"date_confidence": row.DateConfidence,
					"source_name":     row.SourceName,
					"category":        row.Category,
					"checksum":        row.Checksum,
				}).Error; err != nil {
					return fmt.Errorf("update %s: %w", row.URL, err)
				}
				stats.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return storage.UpsertStats{}, err
	}

	r.logger.Debug("Batch upserted",
		"size", len(batch),
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
	)
	return stats, nil
}

func applyFilter(q *gorm.DB, opts storage.ListOptions) *gorm.DB {
	if opts.Category != "" {
		q = q.Where("category = ?", opts.Category)
	}
	if len(opts.Sources) > 0 {
		q = q.Where("source_name IN ?", opts.Sources)
	}
	return q
}

// ListArticles по убыванию даты
func (r *Repository) ListArticles(ctx context.Context, opts storage.ListOptions) ([]scraper.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	q := applyFilter(r.db.WithContext(ctx).Model(&articleRow{}), opts).
		Order("published_at DESC").
		Order("url")
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var rows []articleRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}

	articles := make([]scraper.Article, len(rows))
	for i, row := range rows {
		articles[i] = row.article()
	}
	return articles, nil
}

func (r *Repository) CountArticles(ctx context.Context, opts storage.ListOptions) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int64
	if err := applyFilter(r.db.WithContext(ctx).Model(&articleRow{}), opts).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return int(count), nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/normalize"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/scraper"
	"daily-news-parser/internal/storage"
)

const createTableSQL = `
	IF OBJECT_ID(N'TblArticles', N'U') IS NULL
	CREATE TABLE TblArticles (
		[URL]            NVARCHAR(900)  NOT NULL PRIMARY KEY,
		[Title]          NVARCHAR(1000) NOT NULL,
		[Description]    NVARCHAR(MAX)  NOT NULL,
		[ImageURL]       NVARCHAR(2000) NOT NULL,
		[DT]             DATETIME2(3)   NOT NULL,
		[DateConfidence] NVARCHAR(16)   NOT NULL,
		[SourceName]     NVARCHAR(128)  NOT NULL,
		[Category]       NVARCHAR(128)  NOT NULL,
		[CheckSum]       CHAR(64)       NOT NULL,
		[UpdatedAt]      DATETIME2(3)   NOT NULL DEFAULT SYSUTCDATETIME()
	);
`

// MERGE с OUTPUT $action: строка не возвращается, если checksum не изменился
const upsertSQL = `
	MERGE INTO TblArticles AS target
	USING (SELECT @URL AS URL) AS source
	ON target.[URL] = source.URL
	WHEN MATCHED AND target.[CheckSum] <> @CheckSum THEN
		UPDATE SET
			[Title] = @Title,
			[Description] = @Description,
			[ImageURL] = @ImageURL,
			[DT] = @DT,
			[DateConfidence] = @DateConfidence,
			[SourceName] = @SourceName,
			[Category] = @Category,
			[CheckSum] = @CheckSum,
			[UpdatedAt] = SYSUTCDATETIME()
	WHEN NOT MATCHED THEN
		INSERT ([URL], [Title], [Description], [ImageURL], [DT], [DateConfidence], [SourceName], [Category], [CheckSum])
		VALUES (@URL, @Title, @Description, @ImageURL, @DT, @DateConfidence, @SourceName, @Category, @CheckSum)
	OUTPUT $action;
`

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg *config.Config, logger *observability.Logger) (storage.Repository, error) {
		return NewRepository(ctx, cfg.Storage.DSN, cfg.Storage.CommandTimeoutMS, cfg.Storage.BatchSize, logger)
	})
}

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	batchSize      int
	logger         *observability.Logger
}

func NewRepository(ctx context.Context, dsn string, commandTimeoutMS, batchSize int, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	r := &Repository{
		db:             db,
		commandTimeout: time.Duration(commandTimeoutMS) * time.Millisecond,
		batchSize:      batchSize,
		logger:         logger,
	}

	// Тестируем соединение
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return r, nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create TblArticles: %w", err)
	}
	return nil
}

// UpsertArticles сохраняет статьи пачками, каждая пачка в своей транзакции
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

func (r *Repository) upsertBatch(ctx context.Context, batch []scraper.Article) (stats storage.UpsertStats, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("Failed to rollback transaction", "error", rbErr.Error())
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return stats, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	for _, a := range batch {
		var action string
		err = stmt.QueryRowContext(ctx,
			sql.Named("URL", a.ArticleURL),
			sql.Named("Title", a.Title),
			sql.Named("Description", a.Description),
			sql.Named("ImageURL", a.ImageURL),
			sql.Named("DT", a.Date.UTC()),
			sql.Named("DateConfidence", string(a.DateConfidence)),
			sql.Named("SourceName", a.SourceName),
			sql.Named("Category", a.Category),
			sql.Named("CheckSum", a.Checksum),
		).Scan(&action)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = nil
			stats.Unchanged++
		case err != nil:
			return stats, fmt.Errorf("failed to execute upsert for %s: %w", a.ArticleURL, err)
		case action == "INSERT":
			stats.Inserted++
		default:
			stats.Updated++
		}
	}

	if err = tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit: %w", err)
	}
	return stats, nil
}

// where собирает WHERE и именованные параметры для фильтра
func where(opts storage.ListOptions) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if opts.Category != "" {
		clauses = append(clauses, "[Category] = @Category")
		args = append(args, sql.Named("Category", opts.Category))
	}
	if len(opts.Sources) > 0 {
		names := make([]string, len(opts.Sources))
		for i, s := range opts.Sources {
			param := fmt.Sprintf("S%d", i)
			names[i] = "@" + param
			args = append(args, sql.Named(param, s))
		}
		clauses = append(clauses, "[SourceName] IN ("+strings.Join(names, ", ")+")")
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListArticles по убыванию даты
func (r *Repository) ListArticles(ctx context.Context, opts storage.ListOptions) ([]scraper.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	filter, args := where(opts)
	query := `SELECT [URL], [Title], [Description], [ImageURL], [DT], [DateConfidence], [SourceName], [Category], [CheckSum]
		FROM TblArticles` + filter + ` ORDER BY [DT] DESC, [URL]`

	if opts.Limit > 0 || opts.Offset > 0 {
		query += ` OFFSET @Offset ROWS`
		args = append(args, sql.Named("Offset", opts.Offset))
		if opts.Limit > 0 {
			query += ` FETCH NEXT @Limit ROWS ONLY`
			args = append(args, sql.Named("Limit", opts.Limit))
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("Failed to close rows", "error", err.Error())
		}
	}()

	var articles []scraper.Article
	for rows.Next() {
		var (
			a          scraper.Article
			confidence string
		)
		if err := rows.Scan(&a.ArticleURL, &a.Title, &a.Description, &a.ImageURL, &a.Date,
			&confidence, &a.SourceName, &a.Category, &a.Checksum); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		a.ID = a.ArticleURL
		a.Date = a.Date.UTC()
		a.DateConfidence = normalize.Confidence(confidence)
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return articles, nil
}

// CountArticles количество статей под фильтром (Limit/Offset игнорируются)
func (r *Repository) CountArticles(ctx context.Context, opts storage.ListOptions) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	filter, args := where(opts)

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM TblArticles`+filter, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return count, nil
}

// Close закрывает соединение с БД
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

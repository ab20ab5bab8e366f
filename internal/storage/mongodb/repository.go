package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/normalize"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/scraper"
	"daily-news-parser/internal/storage"
)

func init() {
	storage.Register("mongodb", func(ctx context.Context, cfg *config.Config, logger *observability.Logger) (storage.Repository, error) {
		return NewRepository(ctx, cfg.Storage.DSN, cfg.Storage.Database, cfg.Storage.Collection, cfg.GetCommandTimeout(), logger)
	})
}

// articleDoc документ коллекции; _id = URL статьи
type articleDoc struct {
	URL            string    `bson:"_id"`
	Title          string    `bson:"title"`
	Description    string    `bson:"description"`
	ImageURL       string    `bson:"image_url"`
	Date           time.Time `bson:"date"`
	DateConfidence string    `bson:"date_confidence"`
	SourceName     string    `bson:"source_name"`
	Category       string    `bson:"category"`
	Checksum       string    `bson:"checksum"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

type Repository struct {
	client         *mongo.Client
	collection     *mongo.Collection
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(ctx context.Context, uri, database, collection string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "source_name", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb create indexes: %w", err)
	}

	return &Repository{
		client:         client,
		collection:     coll,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

func docFromArticle(a scraper.Article, now time.Time) articleDoc {
	return articleDoc{
		URL:            a.ArticleURL,
		Title:          a.Title,
		Description:    a.Description,
		ImageURL:       a.ImageURL,
		Date:           a.Date.UTC(),
		DateConfidence: string(a.DateConfidence),
		SourceName:     a.SourceName,
		Category:       a.Category,
		Checksum:       a.Checksum,
		UpdatedAt:      now,
	}
}

func (d articleDoc) article() scraper.Article {
	return scraper.Article{
		ID:             d.URL,
		Title:          d.Title,
		Description:    d.Description,
		Date:           d.Date.UTC(),
		DateConfidence: normalize.Confidence(d.DateConfidence),
		ImageURL:       d.ImageURL,
		ArticleURL:     d.URL,
		SourceName:     d.SourceName,
		Category:       d.Category,
		Checksum:       d.Checksum,
	}
}

// UpsertArticles upsert с фильтром по checksum: совпадающий документ даёт
// duplicate key на вставке и считается неизменным.
func (r *Repository) UpsertArticles(ctx context.Context, articles []scraper.Article) (storage.UpsertStats, error) {
	var stats storage.UpsertStats
	now := time.Now().UTC()
	opts := options.Update().SetUpsert(true)

	for _, a := range articles {
		doc := docFromArticle(a, now)

		opCtx, cancel := context.WithTimeout(ctx, r.commandTimeout)
		res, err := r.collection.UpdateOne(opCtx, upsertFilter(doc), bson.M{"$set": doc}, opts)
		cancel()

		switch {
		case mongo.IsDuplicateKeyError(err):
			stats.Unchanged++
		case err != nil:
			return stats, fmt.Errorf("mongodb upsert %s: %w", doc.URL, err)
		case res.UpsertedCount > 0:
			stats.Inserted++
		case res.MatchedCount > 0:
			stats.Updated++
		default:
			stats.Unchanged++
		}
	}

	r.logger.Debug("Articles stored in mongodb",
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
	)
	return stats, nil
}

func upsertFilter(doc articleDoc) bson.M {
	return bson.M{
		"_id":      doc.URL,
		"checksum": bson.M{"$ne": doc.Checksum},
	}
}

func filter(opts storage.ListOptions) bson.M {
	f := bson.M{}
	if opts.Category != "" {
		f["category"] = opts.Category
	}
	if len(opts.Sources) > 0 {
		f["source_name"] = bson.M{"$in": opts.Sources}
	}
	return f
}

func (r *Repository) ListArticles(ctx context.Context, opts storage.ListOptions) ([]scraper.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	findOpts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: 1}})
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := r.collection.Find(ctx, filter(opts), findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}

	var docs []articleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb decode: %w", err)
	}

	articles := make([]scraper.Article, len(docs))
	for i, d := range docs {
		articles[i] = d.article()
	}
	return articles, nil
}

func (r *Repository) CountArticles(ctx context.Context, opts storage.ListOptions) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	n, err := r.collection.CountDocuments(ctx, filter(opts))
	if err != nil {
		return 0, fmt.Errorf("mongodb count: %w", err)
	}
	return int(n), nil
}

func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.commandTimeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}

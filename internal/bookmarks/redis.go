package bookmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/scraper"
)

// RedisStore хранит статьи в hash (url → JSON), порядок в sorted set (score = время добавления)
type RedisStore struct {
	client   redis.UniversalClient
	itemsKey string
	orderKey string
	logger   *observability.Logger
}

func NewRedisStore(client redis.UniversalClient, keyPrefix string, logger *observability.Logger) *RedisStore {
	return &RedisStore{
		client:   client,
		itemsKey: keyPrefix + "bookmarks:items",
		orderKey: keyPrefix + "bookmarks:order",
		logger:   logger.With("component", "bookmarks"),
	}
}

func (s *RedisStore) Add(ctx context.Context, article scraper.Article) error {
	key, err := keyOf(article.ArticleURL)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("marshal bookmark: %w", err)
	}

	// обе записи в одном MULTI; NX сохраняет исходную позицию повторно добавленной статьи
	score := float64(time.Now().UnixNano())
	var added *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.HSetNX(ctx, s.itemsKey, key, payload)
		pipe.ZAddNX(ctx, s.orderKey, redis.Z{Score: score, Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis add bookmark: %w", err)
	}
	if !added.Val() {
		return nil
	}

	s.logger.Debug("Bookmark added", "url", key)
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, articleURL string) error {
	key, err := keyOf(articleURL)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.itemsKey, key)
		pipe.ZRem(ctx, s.orderKey, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis remove bookmark: %w", err)
	}

	s.logger.Debug("Bookmark removed", "url", key)
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]scraper.Article, error) {
	keys, err := s.client.ZRange(ctx, s.orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	if len(keys) == 0 {
		return []scraper.Article{}, nil
	}

	values, err := s.client.HMGet(ctx, s.itemsKey, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hmget: %w", err)
	}

	out := make([]scraper.Article, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// порядок есть, а статьи нет
			continue
		}
		var a scraper.Article
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			s.logger.Warn("Skipping broken bookmark", "url", keys[i], "error", err.Error())
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *RedisStore) IsBookmarked(ctx context.Context, articleURL string) (bool, error) {
	key, err := keyOf(articleURL)
	if err != nil {
		return false, err
	}

	ok, err := s.client.HExists(ctx, s.itemsKey, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis hexists: %w", err)
	}
	return ok, nil
}

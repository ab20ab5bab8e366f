package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"daily-news-parser/internal/aggregator"
	"daily-news-parser/internal/observability"
)

// ErrNoSnapshot ещё не было ни одного цикла сбора (или снимок истёк)
var ErrNoSnapshot = errors.New("feed snapshot is empty")

// Snapshot последний результат агрегации, из которого отдаётся лента
type Snapshot interface {
	Set(ctx context.Context, result *aggregator.Result) error
	Get(ctx context.Context) (*aggregator.Result, error)
}

// NewSnapshot Redis, если клиент задан, иначе память процесса.
// ttl = 0 означает хранение без срока.
func NewSnapshot(client redis.UniversalClient, keyPrefix string, ttl time.Duration, logger *observability.Logger) Snapshot {
	if client == nil {
		return &memorySnapshot{}
	}
	return &redisSnapshot{
		client: client,
		key:    keyPrefix + "feed:snapshot",
		ttl:    ttl,
		logger: logger.With("component", "snapshot"),
	}
}

type redisSnapshot struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *observability.Logger
}

func (s *redisSnapshot) Set(ctx context.Context, result *aggregator.Result) error {
	bs, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key, bs, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}

	s.logger.Debug("Snapshot stored", "run_id", result.RunID, "bytes", len(bs))
	return nil
}

func (s *redisSnapshot) Get(ctx context.Context) (*aggregator.Result, error) {
	bs, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}

	var result aggregator.Result
	if err := json.Unmarshal(bs, &result); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &result, nil
}

type memorySnapshot struct {
	mu     sync.RWMutex
	result *aggregator.Result
}

func (s *memorySnapshot) Set(_ context.Context, result *aggregator.Result) error {
	s.mu.Lock()
	s.result = result
	s.mu.Unlock()
	return nil
}

func (s *memorySnapshot) Get(_ context.Context) (*aggregator.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.result == nil {
		return nil, ErrNoSnapshot
	}
	return s.result, nil
}

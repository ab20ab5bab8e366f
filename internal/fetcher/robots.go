package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"daily-news-parser/internal/observability"
)

const robotsMaxBytes = 512 << 10

// RobotsCache правила robots.txt по scheme+host с TTL
type RobotsCache struct {
	cache     map[string]*RobotsTxt
	ttl       time.Duration
	userAgent string
	mu        sync.RWMutex
	logger    *observability.Logger
}

type RobotsTxt struct {
	data      *robotstxt.RobotsData
	expiresAt time.Time
}

func NewRobotsCache(ttl time.Duration, userAgent string, logger *observability.Logger) *RobotsCache {
	return &RobotsCache{
		cache:     make(map[string]*RobotsTxt),
		ttl:       ttl,
		userAgent: userAgent,
		logger:    logger.With("component", "robots"),
	}
}

// IsAllowed проверяет URL по robots.txt хоста. Недоступный robots.txt
// (сеть, 5xx, мусор) трактуется как "разрешено".
func (rc *RobotsCache) IsAllowed(ctx context.Context, target *url.URL, client *http.Client) bool {
	key := target.Scheme + "://" + target.Host

	rc.mu.RLock()
	cached, exists := rc.cache[key]
	rc.mu.RUnlock()

	if !exists || time.Now().After(cached.expiresAt) {
		cached = &RobotsTxt{
			data:      rc.fetch(ctx, key, client),
			expiresAt: time.Now().Add(rc.ttl),
		}
		rc.mu.Lock()
		rc.cache[key] = cached
		rc.mu.Unlock()
	}

	if cached.data == nil {
		return true
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return cached.data.TestAgent(path, rc.userAgent)
}

func (rc *RobotsCache) fetch(ctx context.Context, origin string, client *http.Client) *robotstxt.RobotsData {
	robotsURL := origin + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		rc.logger.Debug("robots.txt unavailable, assuming allowed", "url", robotsURL, "error", err.Error())
		return nil
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			rc.logger.Warn("Failed to close response body", "error", err.Error())
		}
	}()

	if resp.StatusCode >= 500 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		return nil
	}

	// 4xx = нет ограничений, 2xx = разбор правил
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		rc.logger.Warn("Invalid robots.txt, assuming allowed", "url", robotsURL, "error", err.Error())
		return nil
	}
	return data
}

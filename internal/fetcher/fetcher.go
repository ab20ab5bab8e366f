package fetcher

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/observability"
)

// ErrDisallowedByRobots URL закрыт правилами robots.txt
var ErrDisallowedByRobots = errors.New("URL disallowed by robots.txt")

// StatusError ответ сервера с кодом вне 2xx
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// Retryable 5xx и 429 имеет смысл повторить
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type Fetcher struct {
	client      *http.Client
	cfg         *config.Config
	logger      *observability.Logger
	robotsCache *RobotsCache
	rateLimiter *RateLimiter
}

type FetchResponse struct {
	StatusCode int
	Body       []byte
	URL        string
	Headers    http.Header
}

func NewFetcher(cfg *config.Config, logger *observability.Logger) *Fetcher {
	client := &http.Client{
		Timeout: cfg.GetTotalTimeout(),
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   cfg.GetConnectTimeout(),
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: cfg.GetConnectTimeout(),
			MaxIdleConns:        cfg.HTTP.MaxIdleConnections,
			MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnectionsPerHost,
			IdleConnTimeout:     cfg.GetIdleConnectionTimeout(),
			// распаковываем сами, включая brotli
			DisableCompression: true,
		},
	}

	var robots *RobotsCache
	if cfg.Robots.Respect {
		robots = NewRobotsCache(cfg.GetRobotsCacheTTL(), cfg.HTTP.UserAgent, logger)
	}

	return &Fetcher{
		client:      client,
		cfg:         cfg,
		logger:      logger.With("component", "http_fetcher"),
		robotsCache: robots,
		rateLimiter: NewRateLimiter(cfg.RateLimit.MaxConcurrentPerHost, cfg.RateLimit.RPM),
	}
}

// FetchPage тело страницы в UTF-8; любой ответ вне 2xx возвращается как *StatusError
func (f *Fetcher) FetchPage(ctx context.Context, urlStr string) ([]byte, error) {
	resp, err := f.Fetch(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: urlStr, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL: unsupported scheme %q", parsedURL.Scheme)
	}

	host := parsedURL.Host

	if f.robotsCache != nil {
		allowed := f.robotsCache.IsAllowed(ctx, parsedURL, f.client)
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowedByRobots, urlStr)
		}
	}

	release, err := f.rateLimiter.Acquire(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	defer release()

	var lastErr error
	for attempt := 0; attempt <= f.cfg.HTTP.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := f.calculateBackoff(attempt)
			f.logger.Debug("Retrying request",
				"url", urlStr,
				"attempt", attempt,
				"backoff_ms", backoff.Milliseconds(),
				"error", lastErr.Error(),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := f.fetchOnce(ctx, urlStr)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		// Повторяем на 5xx и 429
		statusErr := &StatusError{URL: urlStr, StatusCode: resp.StatusCode}
		if statusErr.Retryable() && attempt < f.cfg.HTTP.MaxRetries {
			lastErr = statusErr
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("fetch failed after %d retries: %w", f.cfg.HTTP.MaxRetries, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, urlStr string) (*FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.cfg.HTTP.UserAgent)
	req.Header.Set("Accept-Language", f.cfg.HTTP.AcceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Connection", "keep-alive")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("Failed to close response body", "error", err.Error())
		}
	}()

	reader, err := decompressReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decompress body: %w", err)
	}

	body, err := readLimited(reader, f.cfg.HTTP.MaxBodyBytes)
	if errors.Is(err, errBodyTooLarge) {
		f.logger.Warn("Response body truncated",
			"url", urlStr,
			"max_body_bytes", f.cfg.HTTP.MaxBodyBytes,
		)
	} else if err != nil {
		return nil, err
	}

	body, err = toUTF8(body, resp.Header.Get("Content-Type"))
	if err != nil {
		f.logger.Warn("Charset conversion failed, using raw body",
			"url", urlStr,
			"content_type", resp.Header.Get("Content-Type"),
			"error", err.Error(),
		)
	}

	f.logger.Debug("Fetch complete",
		"url", urlStr,
		"status", resp.StatusCode,
		"content_encoding", resp.Header.Get("Content-Encoding"),
		"content_type", resp.Header.Get("Content-Type"),
		"size", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &FetchResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
		URL:        resp.Request.URL.String(),
		Headers:    resp.Header,
	}, nil
}

func (f *Fetcher) calculateBackoff(attempt int) time.Duration {
	minMS := f.cfg.Backoff.MinMS
	maxMS := f.cfg.Backoff.MaxMS
	jitterPct := f.cfg.Backoff.JitterPct

	// Exponential backoff: min * 2^(attempt-1)
	exponential := minMS * (1 << uint(attempt-1))
	if exponential > maxMS || exponential <= 0 {
		exponential = maxMS
	}

	// Apply jitter: ±jitterPct%
	jitterRange := float64(exponential) * float64(jitterPct) / 100
	jitter := (rand.Float64() - 0.5) * 2 * jitterRange
	finalMS := float64(exponential) + jitter

	if finalMS < float64(minMS) {
		finalMS = float64(minMS)
	}

	return time.Duration(math.Max(finalMS, 0)) * time.Millisecond
}

// Close закрывает простаивающие соединения
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func decompressReader(encoding string, reader io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return zlib.NewReader(reader)
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

var errBodyTooLarge = errors.New("response body exceeds max_body_bytes")

// readLimited читает не больше limit распакованных байт; при превышении
// возвращает прочитанное вместе с errBodyTooLarge. limit <= 0 = без ограничения.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return body[:limit], errBodyTooLarge
	}
	return body, nil
}

// toUTF8 перекодирует тело по charset из Content-Type или <meta>
func toUTF8(body []byte, contentType string) ([]byte, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body, err
	}
	converted, err := io.ReadAll(reader)
	if err != nil {
		return body, err
	}
	return converted, nil
}

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"daily-news-parser/internal/config"
	"daily-news-parser/internal/observability"
)

// ErrBrowserDisabled источник с render: browser при rod.enabled=false
var ErrBrowserDisabled = errors.New("browser rendering is disabled (rod.enabled=false)")

// BrowserFetcher рендерит страницу в headless Chrome (render: browser).
// Браузер запускается при первом запросе.
type BrowserFetcher struct {
	cfg     *config.Config
	logger  *observability.Logger
	mu      sync.Mutex
	browser *rod.Browser
	limiter *RateLimiter

	// robots.txt читается обычным HTTP-клиентом, до запуска браузера
	robots       *RobotsCache
	robotsClient *http.Client
}

func NewBrowserFetcher(cfg *config.Config, logger *observability.Logger) *BrowserFetcher {
	bf := &BrowserFetcher{
		cfg:     cfg,
		logger:  logger.With("component", "browser_fetcher"),
		limiter: NewRateLimiter(cfg.RateLimit.MaxConcurrentPerHost, cfg.RateLimit.RPM),
	}
	if cfg.Robots.Respect {
		bf.robots = NewRobotsCache(cfg.GetRobotsCacheTTL(), cfg.HTTP.UserAgent, logger)
		bf.robotsClient = &http.Client{Timeout: cfg.GetTotalTimeout()}
	}
	return bf
}

func (bf *BrowserFetcher) connect() (*rod.Browser, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.browser != nil {
		return bf.browser, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		NoSandbox(true)
	if bf.cfg.Rod.ChromePath != "" {
		l = l.Bin(bf.cfg.Rod.ChromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf.browser = browser
	bf.logger.Info("Browser started", "chrome_path", bf.cfg.Rod.ChromePath)
	return browser, nil
}

// FetchPage HTML после выполнения JS. Код ответа rod не отдаёт,
// поэтому ошибкой считается только сбой навигации.
func (bf *BrowserFetcher) FetchPage(ctx context.Context, urlStr string) ([]byte, error) {
	html, err := bf.Fetch(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}

func (bf *BrowserFetcher) Fetch(ctx context.Context, urlStr string) (string, error) {
	if !bf.cfg.Rod.Enabled {
		return "", ErrBrowserDisabled
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("invalid URL: unsupported scheme %q", parsedURL.Scheme)
	}
	if bf.robots != nil && !bf.robots.IsAllowed(ctx, parsedURL, bf.robotsClient) {
		return "", fmt.Errorf("%w: %s", ErrDisallowedByRobots, urlStr)
	}

	browser, err := bf.connect()
	if err != nil {
		return "", err
	}

	release, err := bf.limiter.Acquire(ctx, parsedURL.Host)
	if err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}
	defer release()

	start := time.Now()
	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			bf.logger.Warn("Failed to close page", "error", err.Error())
		}
	}()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      bf.cfg.HTTP.UserAgent,
		AcceptLanguage: bf.cfg.HTTP.AcceptLanguage,
	}); err != nil {
		bf.logger.Warn("Failed to set user agent", "error", err.Error())
	}

	if err := page.Timeout(bf.cfg.GetRodPageTimeout()).Navigate(urlStr); err != nil {
		return "", fmt.Errorf("navigate %s: %w", urlStr, err)
	}

	if err := page.Timeout(bf.cfg.GetRodWaitLoadTimeout()).WaitLoad(); err != nil {
		bf.logger.Warn("Page load timeout, continuing", "url", urlStr, "error", err.Error())
	}

	// Ленивые картинки и бесконечные ленты догружаются после load
	if delay := bf.cfg.GetRodLazyLoadDelay(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}

	bf.logger.Debug("Browser fetch complete",
		"url", urlStr,
		"size", len(html),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return html, nil
}

// Close останавливает браузер, если он был запущен
func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.browser == nil {
		return nil
	}
	err := bf.browser.Close()
	bf.browser = nil
	return err
}

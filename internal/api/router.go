package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"daily-news-parser/internal/aggregator"
	"daily-news-parser/internal/app"
	"daily-news-parser/internal/bookmarks"
	"daily-news-parser/internal/config"
	"daily-news-parser/internal/feed"
	"daily-news-parser/internal/observability"
	"daily-news-parser/internal/scraper"
	"daily-news-parser/internal/storage"
)

// Engine то, что API нужно от оркестратора
type Engine interface {
	Sources() []config.SourceConfig
	Statuses() []aggregator.Status
	RunCycle(ctx context.Context) (*app.CycleStats, error)
}

type Server struct {
	engine          Engine
	snapshot        feed.Snapshot
	repo            storage.Repository
	bookmarks       bookmarks.Store
	defaultPageSize int
	maxPageSize     int
	logger          *observability.Logger
}

func NewServer(
	cfg *config.Config,
	engine Engine,
	snapshot feed.Snapshot,
	repo storage.Repository,
	bm bookmarks.Store,
	logger *observability.Logger,
) *Server {
	return &Server{
		engine:          engine,
		snapshot:        snapshot,
		repo:            repo,
		bookmarks:       bm,
		defaultPageSize: cfg.API.DefaultPageSize,
		maxPageSize:     cfg.API.MaxPageSize,
		logger:          logger.With("component", "api"),
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.Use(s.requestLogger())

	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", s.listArticles)
		v1.GET("/categories", s.listCategories)
		v1.GET("/sources", s.listSources)
		v1.POST("/refresh", s.refresh)

		v1.GET("/bookmarks", s.listBookmarks)
		v1.GET("/bookmarks/check", s.checkBookmark)
		v1.PUT("/bookmarks", s.addBookmark)
		v1.DELETE("/bookmarks", s.removeBookmark)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("Request failed", "path", c.FullPath(), "error", err.Error())
	fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseQuery category, sources (через запятую; пустое значение = ни одного), offset, limit
func (s *Server) parseQuery(c *gin.Context) feed.Query {
	q := feed.Query{Category: strings.TrimSpace(c.Query("category"))}

	if raw, present := c.GetQuery("sources"); present {
		q.Sources = []string{}
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				q.Sources = append(q.Sources, name)
			}
		}
	}

	q.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	q.Limit, _ = strconv.Atoi(c.Query("limit"))
	return q.Normalize(s.defaultPageSize, s.maxPageSize)
}

// listArticles отдаёт страницу последнего снимка; до первого цикла
// или с from=store читает из хранилища
func (s *Server) listArticles(c *gin.Context) {
	q := s.parseQuery(c)
	ctx := c.Request.Context()

	if c.Query("from") != "store" {
		result, err := s.snapshot.Get(ctx)
		switch {
		case err == nil:
			ok(c, feed.Apply(result.Articles, q))
			return
		case !errors.Is(err, feed.ErrNoSnapshot):
			s.logger.Warn("Snapshot unavailable, reading from storage", "error", err.Error())
		}
	}

	if q.Sources != nil && len(q.Sources) == 0 {
		ok(c, feed.PageFromStorage(nil, 0, q))
		return
	}

	total, err := s.repo.CountArticles(ctx, q.ListOptions())
	if err != nil {
		s.internalError(c, err)
		return
	}
	articles, err := s.repo.ListArticles(ctx, q.ListOptions())
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, feed.PageFromStorage(articles, total, q))
}

func (s *Server) listCategories(c *gin.Context) {
	ok(c, feed.Categories(s.engine.Sources()))
}

type sourceView struct {
	Name     string             `json:"name"`
	Category string             `json:"category"`
	BaseURL  string             `json:"baseUrl"`
	Enabled  bool               `json:"enabled"`
	Status   *aggregator.Status `json:"status,omitempty"`
}

func (s *Server) listSources(c *gin.Context) {
	statuses := make(map[string]aggregator.Status)
	for _, st := range s.engine.Statuses() {
		statuses[st.Name] = st
	}

	sources := s.engine.Sources()
	out := make([]sourceView, 0, len(sources))
	for _, src := range sources {
		view := sourceView{
			Name:     src.Name,
			Category: src.Category,
			BaseURL:  src.BaseURL,
			Enabled:  src.IsEnabled(),
		}
		if st, found := statuses[src.Name]; found {
			view.Status = &st
		}
		out = append(out, view)
	}
	ok(c, out)
}

func (s *Server) refresh(c *gin.Context) {
	stats, err := s.engine.RunCycle(c.Request.Context())
	if errors.Is(err, app.ErrCycleRunning) {
		fail(c, http.StatusConflict, "cycle_running", err.Error())
		return
	}
	if err != nil && stats == nil {
		s.internalError(c, err)
		return
	}

	data := gin.H{
		"runId":         stats.RunID,
		"sources":       stats.Sources,
		"failedSources": stats.FailedSources,
		"articles":      stats.Articles,
		"inserted":      stats.Stored.Inserted,
		"updated":       stats.Stored.Updated,
		"durationMs":    stats.Duration.Milliseconds(),
	}
	if err != nil {
		// сбор прошёл, упало только сохранение
		data["storageError"] = err.Error()
		s.logger.Error("Refresh stored partially", "error", err.Error())
	}
	ok(c, data)
}

func (s *Server) listBookmarks(c *gin.Context) {
	list, err := s.bookmarks.List(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, list)
}

func (s *Server) checkBookmark(c *gin.Context) {
	marked, err := s.bookmarks.IsBookmarked(c.Request.Context(), c.Query("url"))
	if errors.Is(err, bookmarks.ErrEmptyURL) {
		fail(c, http.StatusBadRequest, "bad_request", "url is required")
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, gin.H{"bookmarked": marked})
}

func (s *Server) addBookmark(c *gin.Context) {
	var article scraper.Article
	if err := c.ShouldBindJSON(&article); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "invalid article payload")
		return
	}
	if article.ID == "" {
		article.ID = article.ArticleURL
	}

	err := s.bookmarks.Add(c.Request.Context(), article)
	if errors.Is(err, bookmarks.ErrEmptyURL) {
		fail(c, http.StatusBadRequest, "bad_request", "articleUrl is required")
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, gin.H{"bookmarked": true})
}

func (s *Server) removeBookmark(c *gin.Context) {
	err := s.bookmarks.Remove(c.Request.Context(), c.Query("url"))
	if errors.Is(err, bookmarks.ErrEmptyURL) {
		fail(c, http.StatusBadRequest, "bad_request", "url is required")
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, gin.H{"bookmarked": false})
}

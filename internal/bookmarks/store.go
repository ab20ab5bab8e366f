package bookmarks

import (
	"context"
	"errors"
	"strings"

	"daily-news-parser/internal/scraper"
)

// ErrEmptyURL статья без URL не может быть закладкой
var ErrEmptyURL = errors.New("bookmark article has empty url")

// Store закладки пользователя. Ключ: ArticleURL. Порядок списка = порядок добавления.
type Store interface {
	// Add повторное добавление того же URL ничего не меняет
	Add(ctx context.Context, article scraper.Article) error
	Remove(ctx context.Context, articleURL string) error
	List(ctx context.Context) ([]scraper.Article, error)
	IsBookmarked(ctx context.Context, articleURL string) (bool, error)
}

func keyOf(articleURL string) (string, error) {
	key := strings.TrimSpace(articleURL)
	if key == "" {
		return "", ErrEmptyURL
	}
	return key, nil
}

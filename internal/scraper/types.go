package scraper

import (
	"encoding/json"
	"fmt"
	"time"

	"daily-news-parser/internal/normalize"
)

// Article нормализованная запись новости. ID совпадает с ArticleURL.
type Article struct {
	ID             string
	Title          string
	Description    string
	Date           time.Time
	DateConfidence normalize.Confidence
	ImageURL       string
	ArticleURL     string
	SourceName     string
	Category       string
	Checksum       string
	Placeholder    bool
}

// RawFields сырые строки, извлечённые из одного фрагмента листинга
type RawFields struct {
	Title       string
	Description string
	Link        string
	Image       string
	Date        string
}

type articleJSON struct {
	ID             string               `json:"id"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Date           string               `json:"date"`
	DateConfidence normalize.Confidence `json:"dateConfidence,omitempty"`
	ImageURL       string               `json:"imageUrl"`
	ArticleURL     string               `json:"articleUrl"`
	SourceName     string               `json:"sourceName"`
	Category       string               `json:"category,omitempty"`
	Checksum       string               `json:"checksum,omitempty"`
	Placeholder    bool                 `json:"placeholder,omitempty"`
}

// MarshalJSON дата всегда в виде 2024-03-20T23:59:59.000Z
func (a Article) MarshalJSON() ([]byte, error) {
	return json.Marshal(articleJSON{
		ID:             a.ID,
		Title:          a.Title,
		Description:    a.Description,
		Date:           normalize.FormatISO(a.Date),
		DateConfidence: a.DateConfidence,
		ImageURL:       a.ImageURL,
		ArticleURL:     a.ArticleURL,
		SourceName:     a.SourceName,
		Category:       a.Category,
		Checksum:       a.Checksum,
		Placeholder:    a.Placeholder,
	})
}

func (a *Article) UnmarshalJSON(data []byte) error {
	var raw articleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	date, err := time.Parse(time.RFC3339Nano, raw.Date)
	if err != nil {
		return fmt.Errorf("invalid article date %q: %w", raw.Date, err)
	}

	*a = Article{
		ID:             raw.ID,
		Title:          raw.Title,
		Description:    raw.Description,
		Date:           date.UTC(),
		DateConfidence: raw.DateConfidence,
		ImageURL:       raw.ImageURL,
		ArticleURL:     raw.ArticleURL,
		SourceName:     raw.SourceName,
		Category:       raw.Category,
		Checksum:       raw.Checksum,
		Placeholder:    raw.Placeholder,
	}
	return nil
}

package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"daily-news-parser/internal/observability"
)

// ISOLayout формат канонической даты статьи (всегда UTC)
const ISOLayout = "2006-01-02T15:04:05.000Z"

// Confidence насколько можно доверять дате записи
type Confidence string

const (
	ConfidenceExact   Confidence = "exact"
	ConfidenceAssumed Confidence = "assumed"
)

// Суффикс польских дат: "15.03.2024 r." / формат "DD.MM.YYYY 'r.'"
const (
	polishYearMarker       = "'r.'"
	polishYearMarkerFormat = " 'r.'"
	polishYearMarkerInput  = " r."
)

// Hint параметры разбора, приходящие из конфигурации источника
type Hint struct {
	Format string
	Locale string
	Source string
}

// DateNormalizer приводит сырые даты к UTC. Никогда не возвращает ошибку:
// нераспознанная дата превращается в текущий момент с предупреждением в лог.
type DateNormalizer struct {
	logger *observability.Logger
	loc    *time.Location
	now    func() time.Time
}

type DateOption func(*DateNormalizer)

// WithClock подменяет источник текущего времени (тесты)
func WithClock(now func() time.Time) DateOption {
	return func(d *DateNormalizer) { d.now = now }
}

// WithLocation часовой пояс для дат без явной зоны
func WithLocation(loc *time.Location) DateOption {
	return func(d *DateNormalizer) {
		if loc != nil {
			d.loc = loc
		}
	}
}

func NewDateNormalizer(logger *observability.Logger, opts ...DateOption) *DateNormalizer {
	d := &DateNormalizer{
		logger: logger.With("component", "date_normalizer"),
		loc:    time.Local,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Now текущий момент по часам нормализатора, в той же точности, что и даты
func (d *DateNormalizer) Now() time.Time {
	return finalize(d.now())
}

// Normalize rawDate → момент времени в UTC с точностью до миллисекунд
func (d *DateNormalizer) Normalize(rawDate, format, source string) time.Time {
	t, _ := d.NormalizeWithConfidence(rawDate, Hint{Format: format, Source: source})
	return t
}

// NormalizeWithConfidence то же, что Normalize, плюс признак: дата разобрана
// или подставлено текущее время
func (d *DateNormalizer) NormalizeWithConfidence(rawDate string, hint Hint) (time.Time, Confidence) {
	now := d.now()
	source := hint.Source
	if source == "" {
		source = "unknown"
	}

	clean := strings.TrimSpace(rawDate)
	if clean == "" {
		d.logger.Warn("Empty date, using current time", "source", source)
		return finalize(now), ConfidenceAssumed
	}

	if hint.Format != "" {
		if t, ok := d.parseWithFormat(clean, hint, now); ok {
			return finalize(t), ConfidenceExact
		}
	}

	// относительные даты проверяются по точным шаблонам и не пересекаются со стандартными
	if t, ok := parseRelative(clean, now, d.loc); ok {
		return finalize(t), ConfidenceExact
	}

	if t, err := dateparse.ParseIn(clean, d.loc); err == nil {
		return finalize(t), ConfidenceExact
	}

	d.logger.Warn("Unparseable date, using current time",
		"source", source,
		"raw", rawDate,
		"format", hint.Format,
	)
	return finalize(now), ConfidenceAssumed
}

func (d *DateNormalizer) parseWithFormat(input string, hint Hint, now time.Time) (time.Time, bool) {
	format := hint.Format

	if strings.Contains(format, polishYearMarker) {
		input = strings.Replace(input, polishYearMarkerInput, "", 1)
		format = strings.Replace(format, polishYearMarkerFormat, "", 1)
		input = strings.TrimSpace(input)
	}

	t, layout, err := ParseWithLayout(input, format, hint.Locale, now, d.loc)
	if err != nil {
		d.logger.Warn("Date does not match source format, trying standard parsing",
			"source", hint.Source,
			"raw", input,
			"format", hint.Format,
			"error", err.Error(),
		)
		return time.Time{}, false
	}

	// Без года: текущий год, а если дата ещё не наступила, то прошлый
	if !layout.HasYear() && t.After(now) {
		t = time.Date(t.Year()-1, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, d.loc)
	}

	// Без времени: конец дня
	if !layout.HasTime() {
		t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, d.loc)
	}

	return t, true
}

func finalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FormatISO каноническое представление: 2024-03-20T23:59:59.000Z
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

var (
	relativeAgoRe = regexp.MustCompile(`^(\d+|an?|one|jedn[aą]?)\s+(\p{L}+)\s+(ago|temu|назад)$`)

	todayWords     = []string{"today", "just now", "dzisiaj", "dziś", "przed chwilą", "сегодня", "сейчас", "только что"}
	yesterdayWords = []string{"yesterday", "wczoraj", "вчера"}

	// префикс единицы → длительность
	relativeUnits = []struct {
		prefix string
		unit   time.Duration
	}{
		{"sec", time.Second}, {"sek", time.Second}, {"сек", time.Second},
		{"min", time.Minute}, {"мин", time.Minute},
		{"hour", time.Hour}, {"godz", time.Hour}, {"час", time.Hour},
		{"day", 24 * time.Hour}, {"dni", 24 * time.Hour}, {"dzie", 24 * time.Hour}, {"дн", 24 * time.Hour}, {"ден", 24 * time.Hour},
		{"week", 7 * 24 * time.Hour}, {"tydz", 7 * 24 * time.Hour}, {"tygod", 7 * 24 * time.Hour}, {"недел", 7 * 24 * time.Hour},
	}
)

// parseRelative "today", "wczoraj", "3 hours ago", "5 minut temu", "2 дня назад"
func parseRelative(s string, now time.Time, loc *time.Location) (time.Time, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))

	for _, w := range todayWords {
		if lower == w {
			return now, true
		}
	}
	for _, w := range yesterdayWords {
		if strings.HasPrefix(lower, w) {
			y := now.In(loc).AddDate(0, 0, -1)
			return time.Date(y.Year(), y.Month(), y.Day(), 23, 59, 59, 0, loc), true
		}
	}

	m := relativeAgoRe.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, false
	}

	n := 1
	if v, err := strconv.Atoi(m[1]); err == nil {
		n = v
	}
	for _, u := range relativeUnits {
		if strings.HasPrefix(m[2], u.prefix) {
			return now.Add(-time.Duration(n) * u.unit), true
		}
	}
	return time.Time{}, false
}

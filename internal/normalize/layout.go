package normalize

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

type tokenKind int

const (
	tkLiteral tokenKind = iota
	tkYear4
	tkYear2
	tkMonthLong
	tkMonthShort
	tkMonth2
	tkMonth1
	tkDay2
	tkDay1
	tkHour24x2
	tkHour24x1
	tkHour12x2
	tkHour12x1
	tkMinute2
	tkMinute1
	tkSecond2
	tkSecond1
	tkMeridiem
)

// порядок важен: длинные токены проверяются раньше коротких
var tokenTable = []struct {
	text string
	kind tokenKind
}{
	{"YYYY", tkYear4},
	{"YY", tkYear2},
	{"MMMM", tkMonthLong},
	{"MMM", tkMonthShort},
	{"MM", tkMonth2},
	{"M", tkMonth1},
	{"DD", tkDay2},
	{"D", tkDay1},
	{"HH", tkHour24x2},
	{"H", tkHour24x1},
	{"hh", tkHour12x2},
	{"h", tkHour12x1},
	{"mm", tkMinute2},
	{"m", tkMinute1},
	{"ss", tkSecond2},
	{"s", tkSecond1},
	{"A", tkMeridiem},
	{"a", tkMeridiem},
}

type token struct {
	kind tokenKind
	lit  string
}

// Layout разобранный формат в стиле dayjs: "DD.MM.YYYY", "D MMMM YYYY, HH:mm", "[Updated] MMM D"
type Layout struct {
	tokens  []token
	hasYear bool
	hasTime bool
}

// ParseLayout токенизирует формат. Текст в [...] или '...' считается литералом.
func ParseLayout(format string) *Layout {
	l := &Layout{}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			l.tokens = append(l.tokens, token{kind: tkLiteral, lit: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(format); {
		c := format[i]
		if c == '[' || c == '\'' {
			closing := byte(']')
			if c == '\'' {
				closing = '\''
			}
			end := strings.IndexByte(format[i+1:], closing)
			if end >= 0 {
				lit.WriteString(format[i+1 : i+1+end])
				i += end + 2
				continue
			}
		}

		matched := false
		for _, t := range tokenTable {
			if strings.HasPrefix(format[i:], t.text) {
				flush()
				l.tokens = append(l.tokens, token{kind: t.kind})
				switch t.kind {
				case tkYear4, tkYear2:
					l.hasYear = true
				case tkHour24x2, tkHour24x1, tkHour12x2, tkHour12x1:
					l.hasTime = true
				}
				i += len(t.text)
				matched = true
				break
			}
		}
		if !matched {
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return l
}

// HasYear формат содержит год
func (l *Layout) HasYear() bool { return l.hasYear }

// HasTime формат содержит часы
func (l *Layout) HasTime() bool { return l.hasTime }

type dateParts struct {
	year, month, day          int
	hour, minute, second      int
	hasYear, hasMonth, hasDay bool
	hour12                    bool
	pm, hasMeridiem           bool
}

// parse сопоставляет вход с форматом. strict: ровно по формату и без хвоста;
// иначе пробелы гибкие, однозначные числа допустимы и хвост игнорируется.
func (l *Layout) parse(input string, months monthTable, strict bool) (dateParts, error) {
	var p dateParts
	s := strings.ToLower(input)
	pos := 0

	for _, tk := range l.tokens {
		if tk.kind == tkLiteral {
			n, ok := matchLiteral(s[pos:], strings.ToLower(tk.lit), strict)
			if !ok {
				return p, fmt.Errorf("expected %q at %d", tk.lit, pos)
			}
			pos += n
			continue
		}

		if !strict {
			pos += leadingSpace(s[pos:])
		}
		rest := s[pos:]

		var (
			v   int
			n   int
			err error
		)
		switch tk.kind {
		case tkYear4:
			v, n, err = readDigits(rest, 4, 4)
			p.year, p.hasYear = v, true
		case tkYear2:
			v, n, err = readDigits(rest, 2, 2)
			// как в dayjs: 69..99 → 19xx, 00..68 → 20xx
			if v > 68 {
				v += 1900
			} else {
				v += 2000
			}
			p.year, p.hasYear = v, true
		case tkMonthLong:
			v, n = matchMonth(rest, months.long)
			if n == 0 {
				v, n = matchMonth(rest, months.short)
			}
			if n == 0 {
				err = fmt.Errorf("unknown month name at %d", pos)
			}
			p.month, p.hasMonth = v, true
		case tkMonthShort:
			v, n = matchMonth(rest, months.short)
			if n == 0 {
				err = fmt.Errorf("unknown month abbreviation at %d", pos)
			}
			p.month, p.hasMonth = v, true
		case tkMonth2, tkMonth1:
			v, n, err = readDigits(rest, minDigits(tk.kind, strict), 2)
			p.month, p.hasMonth = v, true
		case tkDay2, tkDay1:
			v, n, err = readDigits(rest, minDigits(tk.kind, strict), 2)
			p.day, p.hasDay = v, true
		case tkHour24x2, tkHour24x1:
			v, n, err = readDigits(rest, minDigits(tk.kind, strict), 2)
			p.hour = v
		case tkHour12x2, tkHour12x1:
			v, n, err = readDigits(rest, minDigits(tk.kind, strict), 2)
			p.hour, p.hour12 = v, true
		case tkMinute2, tkMinute1:
			v, n, err = readDigits(rest, minDigits(tk.kind, strict), 2)
			p.minute = v
		case tkSecond2, tkSecond1:
			v, n, err = readDigits(rest, minDigits(tk.kind, strict), 2)
			p.second = v
		case tkMeridiem:
			switch {
			case strings.HasPrefix(rest, "am"), strings.HasPrefix(rest, "pm"):
				p.pm, n = rest[0] == 'p', 2
			case strings.HasPrefix(rest, "a.m."), strings.HasPrefix(rest, "p.m."):
				p.pm, n = rest[0] == 'p', 4
			default:
				err = fmt.Errorf("expected am/pm at %d", pos)
			}
			p.hasMeridiem = true
		}
		if err != nil {
			return p, err
		}
		pos += n
	}

	if strict && pos != len(s) {
		return p, fmt.Errorf("unexpected trailing text %q", s[pos:])
	}
	return p, nil
}

func minDigits(kind tokenKind, strict bool) int {
	switch kind {
	case tkMonth2, tkDay2, tkHour24x2, tkHour12x2, tkMinute2, tkSecond2:
		if strict {
			return 2
		}
	}
	return 1
}

func readDigits(s string, minN, maxN int) (int, int, error) {
	n, v := 0, 0
	for n < len(s) && n < maxN && s[n] >= '0' && s[n] <= '9' {
		v = v*10 + int(s[n]-'0')
		n++
	}
	if n < minN {
		return 0, 0, fmt.Errorf("expected %d digits", minN)
	}
	return v, n, nil
}

// matchLiteral строгий режим сравнивает байт в байт; в мягком любые
// пробельные последовательности равны друг другу
func matchLiteral(s, lit string, strict bool) (int, bool) {
	if strict {
		if strings.HasPrefix(s, lit) {
			return len(lit), true
		}
		return 0, false
	}

	i, j := 0, 0
	for j < len(lit) {
		if lit[j] == ' ' {
			for j < len(lit) && lit[j] == ' ' {
				j++
			}
			i += leadingSpace(s[i:])
			continue
		}
		if i >= len(s) || s[i] != lit[j] {
			return 0, false
		}
		i++
		j++
	}
	return i, true
}

func leadingSpace(s string) int {
	n := 0
	for n < len(s) {
		r := rune(s[n])
		if r == 0xC2 && n+1 < len(s) && s[n+1] == 0xA0 {
			// NBSP
			n += 2
			continue
		}
		if !unicode.IsSpace(r) || r >= 0x80 {
			break
		}
		n++
	}
	return n
}

// build собирает time.Time и проверяет календарную корректность
func (p dateParts) build(now time.Time, loc *time.Location) (time.Time, error) {
	year, month, day := p.year, p.month, p.day
	nowLoc := now.In(loc)

	if !p.hasYear {
		year = nowLoc.Year()
	}
	if !p.hasMonth {
		month = 1
		if !p.hasYear {
			month = int(nowLoc.Month())
		}
	}
	if !p.hasDay {
		day = 1
		if !p.hasYear && !p.hasMonth {
			day = nowLoc.Day()
		}
	}

	hour := p.hour
	switch {
	case p.hasMeridiem && hour > 12:
		// 24-часовой формат с избыточным AM/PM допустим
		if p.hour12 {
			return time.Time{}, fmt.Errorf("hour %d out of range", hour)
		}
	case p.hasMeridiem:
		if p.pm && hour < 12 {
			hour += 12
		} else if !p.pm && hour == 12 {
			hour = 0
		}
	case p.hour12 && (hour < 1 || hour > 12):
		return time.Time{}, fmt.Errorf("hour %d out of range", hour)
	}

	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	}
	if day < 1 || day > daysIn(year, time.Month(month)) {
		return time.Time{}, fmt.Errorf("day %d out of range for %04d-%02d", day, year, month)
	}
	if hour > 23 || p.minute > 59 || p.second > 59 {
		return time.Time{}, fmt.Errorf("time %02d:%02d:%02d out of range", hour, p.minute, p.second)
	}

	return time.Date(year, time.Month(month), day, hour, p.minute, p.second, 0, loc), nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseWithLayout разбирает строку по формату: сначала строго, затем мягко.
// Возвращает ошибку, если ни один режим не дал корректную дату.
func ParseWithLayout(input, format, locale string, now time.Time, loc *time.Location) (time.Time, *Layout, error) {
	layout := ParseLayout(format)
	months := tableFor(locale)

	parts, err := layout.parse(input, months, true)
	if err == nil {
		t, buildErr := parts.build(now, loc)
		if buildErr == nil {
			return t, layout, nil
		}
		err = buildErr
	}

	// мягкий режим: дата может стоять после служебного текста ("Opublikowano: 15.03")
	for _, offset := range wordStarts(input) {
		parts, lenientErr := layout.parse(input[offset:], months, false)
		if lenientErr != nil {
			continue
		}
		t, buildErr := parts.build(now, loc)
		if buildErr != nil {
			err = buildErr
			continue
		}
		return t, layout, nil
	}

	return time.Time{}, layout, fmt.Errorf("parse %q with format %q: %w", input, format, err)
}

// wordStarts смещения начала каждого слова или числа, включая 0
func wordStarts(s string) []int {
	offsets := []int{0}
	prevAlnum := true
	for i, r := range s {
		alnum := unicode.IsLetter(r) || unicode.IsDigit(r)
		if alnum && !prevAlnum && i > 0 {
			offsets = append(offsets, i)
		}
		prevAlnum = alnum
	}
	return offsets
}

package normalize

import (
	"sort"
	"strings"
)

type monthName struct {
	name  string
	month int
}

type monthTable struct {
	long  []monthName
	short []monthName
}

var (
	// Английские месяцы
	enLong  = []string{"january", "february", "march", "april", "may", "june", "july", "august", "september", "october", "november", "december"}
	enShort = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

	// Польские: именительный и родительный падеж ("15 marca 2024")
	plLong     = []string{"styczeń", "luty", "marzec", "kwiecień", "maj", "czerwiec", "lipiec", "sierpień", "wrzesień", "październik", "listopad", "grudzień"}
	plGenitive = []string{"stycznia", "lutego", "marca", "kwietnia", "maja", "czerwca", "lipca", "sierpnia", "września", "października", "listopada", "grudnia"}
	plShort    = []string{"sty", "lut", "mar", "kwi", "maj", "cze", "lip", "sie", "wrz", "paź", "lis", "gru"}

	// Русские
	ruLong     = []string{"январь", "февраль", "март", "апрель", "май", "июнь", "июль", "август", "сентябрь", "октябрь", "ноябрь", "декабрь"}
	ruGenitive = []string{"января", "февраля", "марта", "апреля", "мая", "июня", "июля", "августа", "сентября", "октября", "ноября", "декабря"}
	ruShort    = []string{"янв", "фев", "мар", "апр", "мая", "июн", "июл", "авг", "сен", "окт", "ноя", "дек"}
)

var locales = map[string]monthTable{
	"en": buildTable([][]string{enLong}, [][]string{enShort}, monthName{name: "sept", month: 9}),
	"pl": buildTable([][]string{plLong, plGenitive}, [][]string{plShort}),
	"ru": buildTable([][]string{ruLong, ruGenitive}, [][]string{ruShort}),
}

func buildTable(long, short [][]string, extraShort ...monthName) monthTable {
	var t monthTable
	for _, list := range long {
		t.long = appendNames(t.long, list)
	}
	for _, list := range short {
		t.short = appendNames(t.short, list)
	}
	t.short = append(t.short, extraShort...)
	sortByLength(t.long)
	sortByLength(t.short)
	return t
}

func appendNames(dst []monthName, list []string) []monthName {
	for i, name := range list {
		dst = append(dst, monthName{name: name, month: i + 1})
	}
	return dst
}

// длинные имена первыми, чтобы "marca" не срезалось до "mar"
func sortByLength(names []monthName) {
	sort.SliceStable(names, func(i, j int) bool {
		return len(names[i].name) > len(names[j].name)
	})
}

// tableFor таблица локали плюс английская. Пустая локаль = все таблицы.
func tableFor(locale string) monthTable {
	locale = strings.ToLower(locale)
	if t, ok := locales[locale]; ok && locale != "en" {
		merged := monthTable{
			long:  append(append([]monthName{}, t.long...), locales["en"].long...),
			short: append(append([]monthName{}, t.short...), locales["en"].short...),
		}
		sortByLength(merged.long)
		sortByLength(merged.short)
		return merged
	}
	if locale == "en" {
		return locales["en"]
	}

	var all monthTable
	for _, t := range locales {
		all.long = append(all.long, t.long...)
		all.short = append(all.short, t.short...)
	}
	sortByLength(all.long)
	sortByLength(all.short)
	return all
}

// matchMonth ищет самое длинное имя месяца в начале s (s уже в нижнем регистре)
func matchMonth(s string, names []monthName) (month int, n int) {
	for _, m := range names {
		if strings.HasPrefix(s, m.name) {
			return m.month, len(m.name)
		}
	}
	return 0, 0
}

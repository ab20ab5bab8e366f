// Package transform применяет к сырым значениям полей цепочки именованных
// операций из конфигурации источника. Набор операций закрыт: произвольный
// код из конфига не исполняется.
package transform

import (
	"fmt"
	"strings"

	"daily-news-parser/internal/observability"
)

// Поля, для которых поддерживаются трансформеры
const (
	FieldArticleURL = "articleUrl"
	FieldImageURL   = "imageUrl"
	FieldDate       = "date"
)

var knownFields = map[string]bool{
	FieldArticleURL: true,
	FieldImageURL:   true,
	FieldDate:       true,
}

// Step один шаг цепочки в YAML: {op: strip_query} или {op: prefix, args: ["https://x"]}
type Step struct {
	Op   string   `yaml:"op" json:"op"`
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`
}

func (s Step) String() string {
	if len(s.Args) == 0 {
		return s.Op
	}
	return fmt.Sprintf("%s(%s)", s.Op, strings.Join(s.Args, ", "))
}

// Func преобразование строки в строку
type Func func(string) string

// Chain скомпилированная цепочка для одного поля
type Chain struct {
	field string
	funcs []Func
}

// Apply прогоняет значение через все шаги по порядку
func (c *Chain) Apply(value string) string {
	if c == nil {
		return value
	}
	for _, fn := range c.funcs {
		value = fn(value)
	}
	return value
}

// Len количество шагов (0 = identity)
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.funcs)
}

// Compile собирает цепочку для поля. Ошибка в любом шаге не возвращается
// вызывающему: пишем warning и поле работает как identity.
func Compile(field string, steps []Step, baseURL string, logger *observability.Logger) *Chain {
	chain := &Chain{field: field}
	if len(steps) == 0 {
		return chain
	}

	funcs := make([]Func, 0, len(steps))
	for i, step := range steps {
		fn, err := compileStep(step, baseURL)
		if err != nil {
			logger.Warn("Transformer compile failed, field left unchanged",
				"field", field,
				"step", i,
				"op", step.String(),
				"error", err.Error(),
			)
			return &Chain{field: field}
		}
		funcs = append(funcs, fn)
	}

	chain.funcs = funcs
	return chain
}

// Set трансформеры источника по полям
type Set map[string]*Chain

// CompileSet компилирует все трансформеры источника. Неизвестные поля игнорируются с warning.
func CompileSet(transformers map[string][]Step, baseURL string, logger *observability.Logger) Set {
	set := make(Set, len(transformers))
	for field, steps := range transformers {
		if !knownFields[field] {
			logger.Warn("Transformer for unsupported field ignored", "field", field)
			continue
		}
		set[field] = Compile(field, steps, baseURL, logger)
	}
	return set
}

// Apply применяет трансформер поля; без трансформера значение не меняется
func (s Set) Apply(field, value string) string {
	return s[field].Apply(value)
}

// IsKnownField поддерживается ли поле трансформерами
func IsKnownField(field string) bool {
	return knownFields[field]
}

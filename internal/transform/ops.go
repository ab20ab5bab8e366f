package transform

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type opDef struct {
	arity int
	build func(args []string, baseURL string) (Func, error)
}

var ops = map[string]opDef{
	"prepend_domain": {1, buildPrependDomain},
	"resolve_url":    {0, buildResolveURL},
	"strip_query":    {0, func([]string, string) (Func, error) { return stripQuery, nil }},
	"strip_fragment": {0, func([]string, string) (Func, error) { return stripFragment, nil }},
	"trim":           {0, func([]string, string) (Func, error) { return strings.TrimSpace, nil }},
	"lowercase":      {0, func([]string, string) (Func, error) { return strings.ToLower, nil }},
	"prefix":         {1, buildPrefix},
	"suffix":         {1, buildSuffix},
	"replace":        {2, buildReplace},
	"regex_replace":  {2, buildRegexReplace},
	"regex_extract":  {1, buildRegexExtract},
	"unix_to_iso":    {0, func([]string, string) (Func, error) { return unixToISO, nil }},
}

// Validate проверяет шаг без логирования
func Validate(step Step) error {
	_, err := compileStep(step, "")
	return err
}

func compileStep(step Step, baseURL string) (Func, error) {
	op := strings.ToLower(strings.TrimSpace(step.Op))
	def, ok := ops[op]
	if !ok {
		return nil, fmt.Errorf("unknown transform op %q", step.Op)
	}
	if len(step.Args) != def.arity {
		return nil, fmt.Errorf("op %q expects %d args, got %d", op, def.arity, len(step.Args))
	}
	return def.build(step.Args, baseURL)
}

func isAbsoluteHTTP(value string) bool {
	lower := strings.ToLower(value)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func buildPrependDomain(args []string, _ string) (Func, error) {
	domain := strings.TrimRight(strings.TrimSpace(args[0]), "/")
	if !isAbsoluteHTTP(domain) {
		return nil, fmt.Errorf("prepend_domain: domain must start with http:// or https://, got %q", args[0])
	}
	scheme := domain[:strings.Index(domain, ":")]

	return func(value string) string {
		value = strings.TrimSpace(value)
		switch {
		case value == "":
			return ""
		case isAbsoluteHTTP(value):
			return value
		case strings.HasPrefix(value, "//"):
			// protocol-relative
			return scheme + ":" + value
		default:
			return domain + "/" + strings.TrimLeft(value, "/")
		}
	}, nil
}

func buildResolveURL(_ []string, baseURL string) (Func, error) {
	var base *url.URL
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("resolve_url: invalid base url: %w", err)
		}
		base = parsed
	}

	return func(value string) string {
		value = strings.TrimSpace(value)
		if value == "" || base == nil {
			return value
		}
		ref, err := url.Parse(value)
		if err != nil {
			return value
		}
		return base.ResolveReference(ref).String()
	}, nil
}

func stripQuery(value string) string {
	q := strings.Index(value, "?")
	if q < 0 {
		return value
	}
	rest := value[q:]
	if h := strings.Index(rest, "#"); h >= 0 {
		return value[:q] + rest[h:]
	}
	return value[:q]
}

func stripFragment(value string) string {
	if idx := strings.Index(value, "#"); idx > -1 {
		return value[:idx]
	}
	return value
}

func buildPrefix(args []string, _ string) (Func, error) {
	p := args[0]
	return func(value string) string {
		if value == "" || strings.HasPrefix(value, p) {
			return value
		}
		return p + value
	}, nil
}

func buildSuffix(args []string, _ string) (Func, error) {
	s := args[0]
	return func(value string) string {
		if value == "" || strings.HasSuffix(value, s) {
			return value
		}
		return value + s
	}, nil
}

func buildReplace(args []string, _ string) (Func, error) {
	if args[0] == "" {
		return nil, fmt.Errorf("replace: empty search string")
	}
	r := strings.NewReplacer(args[0], args[1])
	return r.Replace, nil
}

// RE2: линейное время, без backtracking
func buildRegexReplace(args []string, _ string) (Func, error) {
	re, err := regexp.Compile(args[0])
	if err != nil {
		return nil, fmt.Errorf("regex_replace: %w", err)
	}
	repl := args[1]
	return func(value string) string {
		return re.ReplaceAllString(value, repl)
	}, nil
}

func buildRegexExtract(args []string, _ string) (Func, error) {
	re, err := regexp.Compile(args[0])
	if err != nil {
		return nil, fmt.Errorf("regex_extract: %w", err)
	}
	return func(value string) string {
		m := re.FindStringSubmatch(value)
		switch {
		case m == nil:
			return value
		case len(m) > 1:
			return m[1]
		default:
			return m[0]
		}
	}, nil
}

// unixToISO секунды или миллисекунды epoch → RFC3339 UTC
func unixToISO(value string) string {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return value
	}
	var t time.Time
	if n > 1e12 {
		t = time.UnixMilli(n)
	} else {
		t = time.Unix(n, 0)
	}
	return t.UTC().Format(time.RFC3339)
}

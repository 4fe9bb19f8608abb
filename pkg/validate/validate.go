// Package validate evaluates candidate field values against the rules a
// field declares. It never panics or returns errors: malformed rule
// configuration is the loader's problem and is rejected before a Validator
// ever sees it.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mosaicdocs/sourcemgr/pkg/schema"
)

// Result is the outcome of checking one value against one field. Message is
// empty when Valid is true.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// OK is the passing result.
func OK() Result { return Result{Valid: true} }

func fail(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// Validator checks values against field rules. The zero value is not usable;
// construct with New. A Validator is safe for concurrent use: the only
// mutable state is the compiled-pattern cache.
type Validator struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

func New() *Validator {
	return &Validator{patterns: make(map[string]*regexp.Regexp)}
}

// Field evaluates value against the field's required flag and declared
// rules, returning the first failure. Required-empty and optional-empty
// short-circuit; after that every declared rule is checked in declaration
// order until one fails.
func (v *Validator) Field(field schema.FieldSchema, value any) Result {
	text := valueString(value)
	empty := strings.TrimSpace(text) == ""

	if field.Type == schema.FieldTypeBoolean {
		// Booleans are always set; none of the declared rule kinds apply.
		return OK()
	}
	if empty {
		if field.Required {
			return fail("%s is required", field.Label)
		}
		return OK()
	}

	for _, rule := range field.Rules {
		if result := v.check(field, rule, text); !result.Valid {
			return result
		}
	}
	return OK()
}

// All evaluates every declared rule instead of stopping at the first
// failure, returning the failures in declaration order. A nil slice means
// the value passed.
func (v *Validator) All(field schema.FieldSchema, value any) []Result {
	text := valueString(value)
	empty := strings.TrimSpace(text) == ""

	if field.Type == schema.FieldTypeBoolean {
		return nil
	}
	if empty {
		if field.Required {
			return []Result{fail("%s is required", field.Label)}
		}
		return nil
	}

	var failures []Result
	for _, rule := range field.Rules {
		if result := v.check(field, rule, text); !result.Valid {
			failures = append(failures, result)
		}
	}
	return failures
}

func (v *Validator) check(field schema.FieldSchema, rule schema.ValidationRule, text string) Result {
	switch rule.Kind {
	case schema.RulePattern:
		expr := rule.Params["pattern"]
		re := v.compile(expr)
		if re == nil || re.MatchString(text) {
			return OK()
		}
		format := field.HintText
		if format == "" {
			format = expr
		}
		return fail("%s must match format: %s", field.Label, format)

	case schema.RuleMinLength:
		bound, ok := parseInt(rule.Params["value"])
		if ok && utf8.RuneCountInString(strings.TrimSpace(text)) < bound {
			return fail("%s must be at least %d characters", field.Label, bound)
		}

	case schema.RuleMaxLength:
		bound, ok := parseInt(rule.Params["value"])
		if ok && utf8.RuneCountInString(strings.TrimSpace(text)) > bound {
			return fail("%s must be at most %d characters", field.Label, bound)
		}

	case schema.RuleMin:
		bound, ok := parseFloat(rule.Params["value"])
		if !ok {
			return OK()
		}
		number, ok := parseFloat(text)
		if !ok {
			return fail("%s must be numeric", field.Label)
		}
		if number < bound {
			return fail("%s must be ≥ %s", field.Label, formatBound(bound))
		}

	case schema.RuleMax:
		bound, ok := parseFloat(rule.Params["value"])
		if !ok {
			return OK()
		}
		number, ok := parseFloat(text)
		if !ok {
			return fail("%s must be numeric", field.Label)
		}
		if number > bound {
			return fail("%s must be ≤ %s", field.Label, formatBound(bound))
		}
	}
	return OK()
}

// compile returns the compiled full-match form of expr, caching by the raw
// expression. Patterns are validated at schema load, so a compile failure
// here is treated as "no pattern" rather than a runtime error.
func (v *Validator) compile(expr string) *regexp.Regexp {
	if expr == "" {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if re, ok := v.patterns[expr]; ok {
		return re
	}
	re, err := regexp.Compile(`\A(?:` + expr + `)\z`)
	if err != nil {
		re = nil
	}
	v.patterns[expr] = re
	return re
}

func valueString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func parseInt(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	return n, err == nil
}

func parseFloat(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return f, err == nil
}

func formatBound(bound float64) string {
	return strconv.FormatFloat(bound, 'f', -1, 64)
}

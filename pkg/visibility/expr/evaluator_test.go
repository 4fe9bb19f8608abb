package expr_test

import (
	"testing"

	"github.com/mosaicdocs/sourcemgr/pkg/visibility"
	"github.com/mosaicdocs/sourcemgr/pkg/visibility/expr"
)

func TestEvaluatorRules(t *testing.T) {
	ctx := visibility.Context{
		Values: map[string]any{
			"project_type":  "CCR",
			"is_classified": true,
			"priority":      3,
			"status":        "draft",
			"empty":         "",
		},
		Extras: map[string]any{
			"region": "pacific",
		},
	}

	cases := []struct {
		name string
		rule string
		want bool
	}{
		{"empty rule is applicable", "", true},
		{"string equality", `project_type == "CCR"`, true},
		{"string inequality", `project_type != "GSC"`, true},
		{"single quoted literal", `project_type == 'CCR'`, true},
		{"bare word literal", "status == draft", true},
		{"numeric comparison", "priority == 3", true},
		{"numeric mismatch", "priority == 4", false},
		{"truthy bool", "is_classified", true},
		{"negated truthy", "!is_classified", false},
		{"truthy empty string", "empty", false},
		{"missing field is falsy", "does_not_exist", false},
		{"missing field equals null", "does_not_exist == null", true},
		{"and composition", `project_type == "CCR" && is_classified`, true},
		{"and short circuit", `project_type == "GSC" && is_classified`, false},
		{"or composition", `project_type == "GSC" || is_classified`, true},
		{"parentheses", `(project_type == "GSC" || status == draft) && priority == 3`, true},
		{"extras lookup", `extras.region == "pacific"`, true},
	}

	eval := expr.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := eval.Eval("field", tc.rule, ctx)
			if err != nil {
				t.Fatalf("Eval(%q) returned error: %v", tc.rule, err)
			}
			if got != tc.want {
				t.Fatalf("Eval(%q) = %v, want %v", tc.rule, got, tc.want)
			}
		})
	}
}

func TestEvaluatorErrors(t *testing.T) {
	cases := []struct {
		name string
		rule string
	}{
		{"single equals", "project_type = CCR"},
		{"dangling operator", "project_type =="},
		{"unterminated string", `project_type == "CCR`},
		{"missing close paren", `(project_type == "CCR"`},
		{"trailing garbage", `is_classified ??`},
	}

	eval := expr.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := eval.Eval("field", tc.rule, visibility.Context{}); err == nil {
				t.Fatalf("Eval(%q) expected an error", tc.rule)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := expr.Validate(`project_type == "CCR" && !is_classified`); err != nil {
		t.Fatalf("Validate returned error for well-formed rule: %v", err)
	}
	if err := expr.Validate("a &&"); err == nil {
		t.Fatal("Validate accepted malformed rule")
	}
}

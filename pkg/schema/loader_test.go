package schema_test

import (
	"errors"
	"os"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/mosaicdocs/sourcemgr/pkg/schema"
)

func loadTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.LoadFS(os.DirFS("testdata"))
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	return reg
}

func TestLoadFS(t *testing.T) {
	reg := loadTestRegistry(t)

	types := reg.Types()
	wantTypes := []schema.TypeInfo{
		{Code: "CCR", DisplayName: "Contentious Collection Request"},
		{Code: "GSC", DisplayName: "General Search and Characterization"},
		{Code: "OTH", DisplayName: "Other"},
	}
	if diff := cmp.Diff(wantTypes, types); diff != "" {
		t.Fatalf("Types mismatch (-want +got):\n%s", diff)
	}

	ccr, err := reg.Schema("CCR")
	if err != nil {
		t.Fatalf("Schema(CCR): %v", err)
	}
	if got := len(ccr.Fields); got != 10 {
		t.Fatalf("expected 10 CCR fields, got %d", got)
	}

	be, ok := ccr.Field("be_number")
	if !ok {
		t.Fatal("be_number field missing")
	}
	if !be.Required {
		t.Error("be_number should be required")
	}
	if be.Stage != schema.StageDialog {
		t.Errorf("be_number stage = %q, want dialog", be.Stage)
	}
	if len(be.Rules) != 1 || be.Rules[0].Kind != schema.RulePattern {
		t.Fatalf("be_number rules = %#v, want a single pattern rule", be.Rules)
	}

	caveat, ok := ccr.Field("caveat")
	if !ok {
		t.Fatal("caveat field missing")
	}
	if !caveat.Conditional() {
		t.Error("caveat should be conditional")
	}
	if got, want := caveat.ApplicabilityRule(), `classification == "SECRET//REL"`; got != want {
		t.Errorf("caveat rule = %q, want %q", got, want)
	}
}

func TestLoadFSRuleOrder(t *testing.T) {
	reg := loadTestRegistry(t)

	ccr, err := reg.Schema("CCR")
	if err != nil {
		t.Fatalf("Schema(CCR): %v", err)
	}
	name, _ := ccr.Field("project_name")
	var kinds []string
	for _, rule := range name.Rules {
		kinds = append(kinds, rule.Kind)
	}
	want := []string{schema.RuleMinLength, schema.RuleMaxLength}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("rule order mismatch (-want +got):\n%s", diff)
	}

	priority, _ := ccr.Field("priority")
	if got := priority.Rules[0].Params["value"]; got != "1" {
		t.Errorf("min rule value = %q, want 1", got)
	}
}

func TestRegistryFieldsExclude(t *testing.T) {
	reg := loadTestRegistry(t)

	all, err := reg.Fields("CCR")
	if err != nil {
		t.Fatalf("Fields(CCR): %v", err)
	}

	got, err := reg.Fields("CCR", "project_name", "be_number", "osuffix", "no_such_field")
	if err != nil {
		t.Fatalf("Fields with exclude: %v", err)
	}
	if len(got) != len(all)-3 {
		t.Fatalf("expected %d fields after exclude, got %d", len(all)-3, len(got))
	}
	for _, field := range got {
		switch field.Name {
		case "project_name", "be_number", "osuffix":
			t.Errorf("field %s should have been excluded", field.Name)
		}
	}
}

func TestRegistryStageFields(t *testing.T) {
	reg := loadTestRegistry(t)

	dialog, err := reg.DialogFields("CCR")
	if err != nil {
		t.Fatalf("DialogFields: %v", err)
	}
	wantDialog := []string{"project_name", "be_number", "osuffix"}
	var names []string
	for _, field := range dialog {
		names = append(names, field.Name)
	}
	if diff := cmp.Diff(wantDialog, names); diff != "" {
		t.Fatalf("dialog fields mismatch (-want +got):\n%s", diff)
	}

	meta, err := reg.MetadataFields("OTH")
	if err != nil {
		t.Fatalf("MetadataFields: %v", err)
	}
	for _, field := range meta {
		if field.Stage != schema.StageMetadata {
			t.Errorf("field %s has stage %q in metadata listing", field.Name, field.Stage)
		}
	}
}

func TestRegistryUnknownType(t *testing.T) {
	reg := loadTestRegistry(t)

	_, err := reg.Schema("ZZZ")
	var unknown *schema.UnknownTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTypeError, got %v", err)
	}
	if unknown.TypeCode != "ZZZ" {
		t.Errorf("TypeCode = %q, want ZZZ", unknown.TypeCode)
	}

	if _, err := reg.Fields("ZZZ"); !errors.As(err, &unknown) {
		t.Fatalf("Fields should surface UnknownTypeError, got %v", err)
	}
}

func TestLoadFSErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{
			"duplicate field in type",
			`fields:
  - {name: a, type: text}
entityTypes:
  - {code: T, fields: [a, a]}`,
		},
		{
			"unknown field reference",
			`fields:
  - {name: a, type: text}
entityTypes:
  - {code: T, fields: [a, missing]}`,
		},
		{
			"dropdown without options",
			`fields:
  - {name: a, type: dropdown}
entityTypes:
  - {code: T, fields: [a]}`,
		},
		{
			"invalid pattern",
			`fields:
  - {name: a, type: text, rules: {pattern: "("}}
entityTypes:
  - {code: T, fields: [a]}`,
		},
		{
			"unknown rule kind",
			`fields:
  - {name: a, type: text, rules: {shorterThan: 4}}
entityTypes:
  - {code: T, fields: [a]}`,
		},
		{
			"self dependency",
			`fields:
  - {name: a, type: text, dependsOn: a, dependsValue: x}
entityTypes:
  - {code: T, fields: [a]}`,
		},
		{
			"unresolved dependency",
			`fields:
  - {name: a, type: text, dependsOn: b, dependsValue: x}
entityTypes:
  - {code: T, fields: [a]}`,
		},
		{
			"invalid visibility rule",
			`fields:
  - {name: a, type: text, visibleWhen: "b ="}
entityTypes:
  - {code: T, fields: [a]}`,
		},
		{
			"unknown field type",
			`fields:
  - {name: a, type: slider}
entityTypes:
  - {code: T, fields: [a]}`,
		},
		{
			"entity type without fields",
			`fields:
  - {name: a, type: text}
entityTypes:
  - {code: T}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fsys := fstest.MapFS{"types.yaml": &fstest.MapFile{Data: []byte(tc.doc)}}
			_, err := schema.LoadFS(fsys)
			var loadErr *schema.LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("expected LoadError, got %v", err)
			}
		})
	}
}

func TestLoadFSRejectsUnknownKeys(t *testing.T) {
	cases := []struct {
		name string
		file string
		doc  string
	}{
		{
			"misspelled field key in yaml",
			"types.yaml",
			`fields:
  - {name: a, type: text, colmnGroup: left}
entityTypes:
  - {code: T, fields: [a]}`,
		},
		{
			"misspelled field key in json",
			"types.json",
			`{
  "fields": [{"name": "a", "type": "text", "colmnGroup": "left"}],
  "entityTypes": [{"code": "T", "fields": ["a"]}]
}`,
		},
		{
			"unknown top-level key",
			"types.yaml",
			`fields:
  - {name: a, type: text}
entityType:
  - {code: T, fields: [a]}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fsys := fstest.MapFS{tc.file: &fstest.MapFile{Data: []byte(tc.doc)}}
			if _, err := schema.LoadFS(fsys); err == nil {
				t.Fatal("expected load to fail on unknown declaration key")
			}
		})
	}
}

func TestLoadFSDuplicateAcrossFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"a.yaml": &fstest.MapFile{Data: []byte(`fields:
  - {name: shared, type: text}
entityTypes:
  - {code: A, fields: [shared]}`)},
		"b.yaml": &fstest.MapFile{Data: []byte(`fields:
  - {name: shared, type: text}
entityTypes:
  - {code: B, fields: [shared]}`)},
	}
	var loadErr *schema.LoadError
	if _, err := schema.LoadFS(fsys); !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError for duplicate master field, got %v", err)
	}
}

func TestLoadFSDefaultLabel(t *testing.T) {
	fsys := fstest.MapFS{
		"types.yaml": &fstest.MapFile{Data: []byte(`fields:
  - {name: facility_number, type: text}
entityTypes:
  - {code: T, fields: [facility_number]}`)},
	}
	reg, err := schema.LoadFS(fsys)
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	et, err := reg.Schema("T")
	if err != nil {
		t.Fatalf("Schema(T): %v", err)
	}
	field, _ := et.Field("facility_number")
	if field.Label != "Facility Number" {
		t.Errorf("derived label = %q, want %q", field.Label, "Facility Number")
	}
}

func TestLoadFSSanitizesMarkup(t *testing.T) {
	fsys := fstest.MapFS{
		"types.json": &fstest.MapFile{Data: []byte(`{
  "fields": [
    {"name": "a", "type": "text", "label": "<script>x</script>Name", "hint": "<b>bold</b> hint"}
  ],
  "entityTypes": [
    {"code": "T", "fields": ["a"]}
  ]
}`)},
	}
	reg, err := schema.LoadFS(fsys)
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	et, _ := reg.Schema("T")
	field, _ := et.Field("a")
	if field.Label != "Name" {
		t.Errorf("label = %q, want markup stripped", field.Label)
	}
	if field.HintText != "bold hint" {
		t.Errorf("hint = %q, want markup stripped", field.HintText)
	}
}

package layout_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mosaicdocs/sourcemgr/pkg/layout"
	"github.com/mosaicdocs/sourcemgr/pkg/schema"
)

func field(name, group string, tab int) schema.FieldSchema {
	return schema.FieldSchema{Name: name, ColumnGroup: group, TabOrder: tab}
}

func columnNames(plan layout.Plan) []string {
	var names []string
	for _, col := range plan.Columns {
		names = append(names, col.Name)
	}
	return names
}

func fieldNames(col layout.Column) []string {
	var names []string
	for _, f := range col.Fields {
		names = append(names, f.Name)
	}
	return names
}

func TestDeriveGroupsInFirstSeenOrder(t *testing.T) {
	plan := layout.Derive([]schema.FieldSchema{
		field("a", "identity", 0),
		field("b", "tasking", 1),
		field("c", "identity", 2),
		field("d", "handling", 3),
		field("e", "tasking", 4),
	})

	if diff := cmp.Diff([]string{"identity", "tasking", "handling"}, columnNames(plan)); diff != "" {
		t.Fatalf("column order mismatch (-want +got):\n%s", diff)
	}

	identity, ok := plan.Column("identity")
	if !ok {
		t.Fatal("identity column missing")
	}
	if diff := cmp.Diff([]string{"a", "c"}, fieldNames(identity)); diff != "" {
		t.Errorf("identity fields mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriveSortsByTabOrderStably(t *testing.T) {
	plan := layout.Derive([]schema.FieldSchema{
		field("third", "g", 5),
		field("first", "g", 1),
		field("tie_a", "g", 3),
		field("tie_b", "g", 3),
	})

	got := fieldNames(plan.Columns[0])
	want := []string{"first", "tie_a", "tie_b", "third"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tab order mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriveKeepsUngroupedFields(t *testing.T) {
	plan := layout.Derive([]schema.FieldSchema{
		field("a", "identity", 0),
		field("loose", "", 1),
		field("b", "identity", 2),
	})

	if diff := cmp.Diff([]string{"identity", ""}, columnNames(plan)); diff != "" {
		t.Fatalf("column order mismatch (-want +got):\n%s", diff)
	}
	if plan.FieldCount() != 3 {
		t.Fatalf("FieldCount = %d, want 3: layout must never drop fields", plan.FieldCount())
	}
}

func TestDeriveEmptyInput(t *testing.T) {
	plan := layout.Derive(nil)
	if len(plan.Columns) != 0 {
		t.Fatalf("expected no columns, got %d", len(plan.Columns))
	}
	if plan.FieldCount() != 0 {
		t.Fatalf("FieldCount = %d, want 0", plan.FieldCount())
	}
}

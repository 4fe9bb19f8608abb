// Package layout derives a column plan from a field list. It never drops a
// field: every input field appears in exactly one column of the result.
package layout

import (
	"sort"

	"github.com/mosaicdocs/sourcemgr/pkg/schema"
)

// Column is one vertical group of fields in a rendered form.
type Column struct {
	Name   string
	Fields []schema.FieldSchema
}

// Plan is the full column layout for one entity type.
type Plan struct {
	Columns []Column
}

// FieldCount reports how many fields the plan places across all columns.
func (p Plan) FieldCount() int {
	total := 0
	for _, col := range p.Columns {
		total += len(col.Fields)
	}
	return total
}

// Column returns the named column, if present.
func (p Plan) Column(name string) (Column, bool) {
	for _, col := range p.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Derive groups fields into columns by their ColumnGroup. Columns appear in
// the order their group is first seen in the input; fields with an empty
// group form a column of their own under the empty name. Within a column,
// fields sort by TabOrder, and the sort is stable so fields sharing a
// TabOrder keep their declared relative order.
func Derive(fields []schema.FieldSchema) Plan {
	var order []string
	grouped := make(map[string][]schema.FieldSchema)

	for _, field := range fields {
		group := field.ColumnGroup
		if _, seen := grouped[group]; !seen {
			order = append(order, group)
		}
		grouped[group] = append(grouped[group], field)
	}

	plan := Plan{Columns: make([]Column, 0, len(order))}
	for _, group := range order {
		column := Column{Name: group, Fields: grouped[group]}
		sort.SliceStable(column.Fields, func(i, j int) bool {
			return column.Fields[i].TabOrder < column.Fields[j].TabOrder
		})
		plan.Columns = append(plan.Columns, column)
	}
	return plan
}

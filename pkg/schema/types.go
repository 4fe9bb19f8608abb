package schema

import "strconv"

// FieldType enumerates the input kinds a field declaration may use.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeDropdown FieldType = "dropdown"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeBoolean  FieldType = "boolean"
)

// Stage describes when a field is collected during entity creation. Dialog
// fields belong to the creation dialog, metadata fields to the follow-up
// detail form, and implicit fields are filled in by the system rather than
// the user.
type Stage string

const (
	StageDialog   Stage = "dialog"
	StageMetadata Stage = "metadata"
	StageImplicit Stage = "implicit"
)

const (
	RuleMin       = "min"
	RuleMax       = "max"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RulePattern   = "pattern"
)

// ValidationRule represents a single declarative constraint on a field value.
// Numeric bounds and length limits store their threshold in Params["value"];
// pattern rules keep the original expression in Params["pattern"].
type ValidationRule struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// FieldSchema is the declarative definition of one form field: its input
// type, constraints, and layout hints. Instances are owned by the Registry
// and must be treated as read-only after load.
type FieldSchema struct {
	Name         string           `json:"name"`
	Label        string           `json:"label"`
	Type         FieldType        `json:"type"`
	Required     bool             `json:"required"`
	Options      []string         `json:"options,omitempty"`
	Rules        []ValidationRule `json:"rules,omitempty"`
	TabOrder     int              `json:"tabOrder"`
	ColumnGroup  string           `json:"columnGroup,omitempty"`
	HintText     string           `json:"hintText,omitempty"`
	Visible      bool             `json:"visible"`
	Stage        Stage            `json:"stage"`
	DependsOn    string           `json:"dependsOn,omitempty"`
	DependsValue string           `json:"dependsValue,omitempty"`
	VisibleWhen  string           `json:"visibleWhen,omitempty"`
}

// Conditional reports whether the field's applicability depends on the value
// of another field.
func (f FieldSchema) Conditional() bool {
	return f.DependsOn != "" || f.VisibleWhen != ""
}

// ApplicabilityRule returns the visibility expression governing this field,
// compiling a DependsOn/DependsValue pair into the expression grammar used by
// the visibility evaluator. An empty string means the field is always
// applicable.
func (f FieldSchema) ApplicabilityRule() string {
	if f.VisibleWhen != "" {
		return f.VisibleWhen
	}
	if f.DependsOn == "" {
		return ""
	}
	return f.DependsOn + " == " + strconv.Quote(f.DependsValue)
}

// EntityTypeSchema is a named entity category (a project type, a source
// type) owning an ordered field list. Instances are defined once at
// configuration-load time and never mutated afterwards.
type EntityTypeSchema struct {
	TypeCode         string        `json:"typeCode"`
	DisplayName      string        `json:"displayName"`
	Description      string        `json:"description,omitempty"`
	FilenameTemplate string        `json:"filenameTemplate,omitempty"`
	Fields           []FieldSchema `json:"fields"`
}

// Field looks up a field by name within the type's declared field list.
func (s EntityTypeSchema) Field(name string) (FieldSchema, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldSchema{}, false
}

// FieldNames returns the declared field names in order.
func (s EntityTypeSchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, field := range s.Fields {
		names[i] = field.Name
	}
	return names
}

// TypeInfo pairs an entity type code with its display name for listings.
type TypeInfo struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

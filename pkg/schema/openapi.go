package schema

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

// Extension keys recognised on OpenAPI component schemas and their
// properties. They carry the layout and staging metadata an OpenAPI
// document has no native slot for.
const (
	extDisplayName      = "x-display-name"
	extFilenameTemplate = "x-filename-template"
	extColumnGroup      = "x-column-group"
	extStage            = "x-stage"
	extDependsOn        = "x-depends-on"
	extDependsValue     = "x-depends-value"
	extVisibleWhen      = "x-visible-when"
	extHint             = "x-hint"
)

// FromOpenAPI builds a Registry from the component schemas of an OpenAPI
// 3 document. Each object-typed component becomes an entity type and its
// primitive properties become fields in property-name order. Non-primitive
// properties are skipped rather than mistranslated.
func FromOpenAPI(ctx context.Context, data []byte) (*Registry, error) {
	if len(data) == 0 {
		return nil, &LoadError{Reason: "openapi document payload is empty"}
	}

	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("schema: load openapi document: %w", err)
	}
	if doc.Components == nil || len(doc.Components.Schemas) == 0 {
		return nil, &LoadError{Reason: "openapi document declares no component schemas"}
	}

	codes := make([]string, 0, len(doc.Components.Schemas))
	for code := range doc.Components.Schemas {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var types []EntityTypeSchema
	for _, code := range codes {
		ref := doc.Components.Schemas[code]
		if ref == nil || ref.Value == nil {
			continue
		}
		et, err := entityTypeFromSchema(code, ref.Value)
		if err != nil {
			return nil, err
		}
		if len(et.Fields) == 0 {
			continue
		}
		types = append(types, et)
	}
	if len(types) == 0 {
		return nil, &LoadError{Reason: "openapi document yields no usable entity types"}
	}

	return NewRegistry(types)
}

func entityTypeFromSchema(code string, src *openapi3.Schema) (EntityTypeSchema, error) {
	et := EntityTypeSchema{
		TypeCode:         code,
		DisplayName:      sanitizeText(stringExtension(src.Extensions, extDisplayName)),
		Description:      sanitizeText(src.Description),
		FilenameTemplate: stringExtension(src.Extensions, extFilenameTemplate),
	}
	if et.DisplayName == "" {
		et.DisplayName = labelFromName(code)
	}

	required := make(map[string]struct{}, len(src.Required))
	for _, name := range src.Required {
		required[name] = struct{}{}
	}

	names := make([]string, 0, len(src.Properties))
	for name := range src.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		propRef := src.Properties[name]
		if propRef == nil || propRef.Value == nil {
			continue
		}
		field, ok, err := fieldFromProperty(code, name, propRef.Value)
		if err != nil {
			return EntityTypeSchema{}, err
		}
		if !ok {
			continue
		}
		_, field.Required = required[name]
		field.TabOrder = len(et.Fields)
		et.Fields = append(et.Fields, field)
	}
	return et, nil
}

func fieldFromProperty(typeCode, name string, src *openapi3.Schema) (FieldSchema, bool, error) {
	fieldType, ok := fieldTypeFromSchema(src)
	if !ok {
		return FieldSchema{}, false, nil
	}

	field := FieldSchema{
		Name:         name,
		Label:        labelFromName(name),
		Type:         fieldType,
		HintText:     sanitizeText(firstNonEmpty(stringExtension(src.Extensions, extHint), src.Description)),
		ColumnGroup:  stringExtension(src.Extensions, extColumnGroup),
		Visible:      true,
		DependsOn:    stringExtension(src.Extensions, extDependsOn),
		DependsValue: stringExtension(src.Extensions, extDependsValue),
		VisibleWhen:  stringExtension(src.Extensions, extVisibleWhen),
	}

	stage, err := parseStage(stringExtension(src.Extensions, extStage))
	if err != nil {
		return FieldSchema{}, false, &LoadError{TypeCode: typeCode, Field: name, Reason: err.Error()}
	}
	field.Stage = stage

	if fieldType == FieldTypeDropdown {
		for _, value := range src.Enum {
			field.Options = append(field.Options, fmt.Sprint(value))
		}
	}

	field.Rules = rulesFromSchema(src)
	return field, true, nil
}

func fieldTypeFromSchema(src *openapi3.Schema) (FieldType, bool) {
	switch firstType(src.Type) {
	case "string":
		if len(src.Enum) > 0 {
			return FieldTypeDropdown, true
		}
		switch src.Format {
		case "date", "date-time":
			return FieldTypeDate, true
		}
		if src.Format == "textarea" || stringExtension(src.Extensions, "x-multiline") == "true" {
			return FieldTypeTextarea, true
		}
		return FieldTypeText, true
	case "number", "integer":
		return FieldTypeNumber, true
	case "boolean":
		return FieldTypeBoolean, true
	default:
		return "", false
	}
}

func rulesFromSchema(src *openapi3.Schema) []ValidationRule {
	var rules []ValidationRule
	if src.Pattern != "" {
		rules = append(rules, ValidationRule{Kind: RulePattern, Params: map[string]string{"pattern": src.Pattern}})
	}
	if src.MinLength != 0 {
		rules = append(rules, ValidationRule{Kind: RuleMinLength, Params: map[string]string{"value": strconv.FormatUint(src.MinLength, 10)}})
	}
	if src.MaxLength != nil {
		rules = append(rules, ValidationRule{Kind: RuleMaxLength, Params: map[string]string{"value": strconv.FormatUint(*src.MaxLength, 10)}})
	}
	if src.Min != nil {
		rules = append(rules, ValidationRule{Kind: RuleMin, Params: map[string]string{"value": strconv.FormatFloat(*src.Min, 'f', -1, 64)}})
	}
	if src.Max != nil {
		rules = append(rules, ValidationRule{Kind: RuleMax, Params: map[string]string{"value": strconv.FormatFloat(*src.Max, 'f', -1, 64)}})
	}
	return rules
}

func firstType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	for _, value := range types.Slice() {
		if value != "null" {
			return value
		}
	}
	return ""
}

func stringExtension(extensions map[string]any, key string) string {
	value, ok := extensions[key]
	if !ok || value == nil {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return text
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

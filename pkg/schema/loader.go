package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mosaicdocs/sourcemgr/pkg/visibility/expr"
)

// LoadFS walks the provided filesystem and parses every JSON/YAML schema
// declaration it finds into a Registry. Declarations consist of a master
// field list plus entity types that reference those fields by name; the
// split keeps one definition per field no matter how many types use it.
// Any structural problem aborts the load with a LoadError.
func LoadFS(fsys fs.FS) (*Registry, error) {
	if fsys == nil {
		return nil, &LoadError{Reason: "no declaration filesystem provided"}
	}

	master := make(map[string]FieldSchema)
	var types []EntityTypeSchema

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDeclarationFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}

		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}

		for _, raw := range doc.Fields {
			field, err := fieldFromFile(raw, path)
			if err != nil {
				return err
			}
			if _, exists := master[field.Name]; exists {
				return &LoadError{Source: path, Field: field.Name, Reason: "field declared more than once"}
			}
			master[field.Name] = field
		}

		for _, raw := range doc.EntityTypes {
			et, err := entityTypeFromFile(raw, master, path)
			if err != nil {
				return err
			}
			types = append(types, et)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return NewRegistry(types)
}

func isDeclarationFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

type documentFile struct {
	Fields      []fieldFile      `json:"fields" yaml:"fields"`
	EntityTypes []entityTypeFile `json:"entityTypes" yaml:"entityTypes"`
}

type fieldFile struct {
	Name         string         `json:"name" yaml:"name"`
	Label        string         `json:"label" yaml:"label"`
	Type         string         `json:"type" yaml:"type"`
	Required     bool           `json:"required" yaml:"required"`
	Options      []string       `json:"options" yaml:"options"`
	Rules        map[string]any `json:"rules" yaml:"rules"`
	TabOrder     int            `json:"tabOrder" yaml:"tabOrder"`
	ColumnGroup  string         `json:"columnGroup" yaml:"columnGroup"`
	Hint         string         `json:"hint" yaml:"hint"`
	Visible      *bool          `json:"visible" yaml:"visible"`
	Stage        string         `json:"stage" yaml:"stage"`
	DependsOn    string         `json:"dependsOn" yaml:"dependsOn"`
	DependsValue string         `json:"dependsValue" yaml:"dependsValue"`
	VisibleWhen  string         `json:"visibleWhen" yaml:"visibleWhen"`
}

type entityTypeFile struct {
	Code             string   `json:"code" yaml:"code"`
	DisplayName      string   `json:"displayName" yaml:"displayName"`
	Description      string   `json:"description" yaml:"description"`
	FilenameTemplate string   `json:"filenameTemplate" yaml:"filenameTemplate"`
	Fields           []string `json:"fields" yaml:"fields"`
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, &LoadError{Source: source, Reason: "declaration file is empty"}
	}
	// Unknown keys abort the load rather than being dropped, so a
	// misspelled declaration key fails fast instead of silently changing
	// the schema.
	if strings.EqualFold(filepath.Ext(source), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return documentFile{}, fmt.Errorf("schema: parse %s: %w", source, err)
		}
		return doc, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return documentFile{}, fmt.Errorf("schema: parse %s: %w", source, err)
	}
	return doc, nil
}

func fieldFromFile(raw fieldFile, source string) (FieldSchema, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return FieldSchema{}, &LoadError{Source: source, Reason: "field declaration is missing a name"}
	}

	fieldType, err := parseFieldType(raw.Type)
	if err != nil {
		return FieldSchema{}, &LoadError{Source: source, Field: name, Reason: err.Error()}
	}

	label := sanitizeText(raw.Label)
	if label == "" {
		label = labelFromName(name)
	}

	stage, err := parseStage(raw.Stage)
	if err != nil {
		return FieldSchema{}, &LoadError{Source: source, Field: name, Reason: err.Error()}
	}

	rules, err := rulesFromFile(raw.Rules)
	if err != nil {
		return FieldSchema{}, &LoadError{Source: source, Field: name, Reason: err.Error()}
	}

	visible := true
	if raw.Visible != nil {
		visible = *raw.Visible
	}

	field := FieldSchema{
		Name:         name,
		Label:        label,
		Type:         fieldType,
		Required:     raw.Required,
		Options:      append([]string(nil), raw.Options...),
		Rules:        rules,
		TabOrder:     raw.TabOrder,
		ColumnGroup:  strings.TrimSpace(raw.ColumnGroup),
		HintText:     sanitizeText(raw.Hint),
		Visible:      visible,
		Stage:        stage,
		DependsOn:    strings.TrimSpace(raw.DependsOn),
		DependsValue: raw.DependsValue,
		VisibleWhen:  strings.TrimSpace(raw.VisibleWhen),
	}
	if len(field.Options) == 0 {
		field.Options = nil
	}
	return field, nil
}

func parseFieldType(raw string) (FieldType, error) {
	switch FieldType(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return FieldTypeText, nil
	case FieldTypeText:
		return FieldTypeText, nil
	case FieldTypeTextarea:
		return FieldTypeTextarea, nil
	case FieldTypeDropdown:
		return FieldTypeDropdown, nil
	case FieldTypeNumber:
		return FieldTypeNumber, nil
	case FieldTypeDate:
		return FieldTypeDate, nil
	case FieldTypeBoolean:
		return FieldTypeBoolean, nil
	default:
		return "", fmt.Errorf("unknown field type %q", raw)
	}
}

func parseStage(raw string) (Stage, error) {
	switch Stage(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return StageMetadata, nil
	case StageDialog:
		return StageDialog, nil
	case StageMetadata:
		return StageMetadata, nil
	case StageImplicit:
		return StageImplicit, nil
	default:
		return "", fmt.Errorf("unknown collection stage %q", raw)
	}
}

// ruleKinds fixes the order rules are evaluated and serialised in, so a
// declaration written as a mapping still produces deterministic output.
var ruleKinds = []string{RulePattern, RuleMinLength, RuleMaxLength, RuleMin, RuleMax}

func rulesFromFile(raw map[string]any) ([]ValidationRule, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	known := make(map[string]struct{}, len(ruleKinds))
	for _, kind := range ruleKinds {
		known[kind] = struct{}{}
	}
	for kind := range raw {
		if _, ok := known[kind]; !ok {
			return nil, fmt.Errorf("unknown validation rule %q", kind)
		}
	}

	var rules []ValidationRule
	for _, kind := range ruleKinds {
		value, declared := raw[kind]
		if !declared {
			continue
		}
		switch kind {
		case RulePattern:
			pattern, ok := value.(string)
			if !ok || strings.TrimSpace(pattern) == "" {
				return nil, fmt.Errorf("pattern rule requires a non-empty expression")
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %v", pattern, err)
			}
			rules = append(rules, ValidationRule{Kind: kind, Params: map[string]string{"pattern": pattern}})
		case RuleMinLength, RuleMaxLength:
			n, ok := intParam(value)
			if !ok || n < 0 {
				return nil, fmt.Errorf("%s rule requires a non-negative integer", kind)
			}
			rules = append(rules, ValidationRule{Kind: kind, Params: map[string]string{"value": strconv.Itoa(n)}})
		case RuleMin, RuleMax:
			f, ok := floatParam(value)
			if !ok {
				return nil, fmt.Errorf("%s rule requires a number", kind)
			}
			rules = append(rules, ValidationRule{Kind: kind, Params: map[string]string{"value": strconv.FormatFloat(f, 'f', -1, 64)}})
		}
	}
	return rules, nil
}

func intParam(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func floatParam(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func entityTypeFromFile(raw entityTypeFile, master map[string]FieldSchema, source string) (EntityTypeSchema, error) {
	code := strings.TrimSpace(raw.Code)
	if code == "" {
		return EntityTypeSchema{}, &LoadError{Source: source, Reason: "entity type declaration is missing a code"}
	}

	et := EntityTypeSchema{
		TypeCode:         code,
		DisplayName:      sanitizeText(raw.DisplayName),
		Description:      sanitizeText(raw.Description),
		FilenameTemplate: strings.TrimSpace(raw.FilenameTemplate),
	}
	if et.DisplayName == "" {
		et.DisplayName = code
	}

	for _, name := range raw.Fields {
		field, ok := master[strings.TrimSpace(name)]
		if !ok {
			return EntityTypeSchema{}, &LoadError{Source: source, TypeCode: code, Field: name, Reason: "entity type references an undeclared field"}
		}
		et.Fields = append(et.Fields, field)
	}

	if err := validateEntityType(et); err != nil {
		if loadErr, ok := err.(*LoadError); ok && loadErr.Source == "" {
			loadErr.Source = source
		}
		return EntityTypeSchema{}, err
	}
	return et, nil
}

// validateEntityType runs the structural checks shared by the file loader
// and NewRegistry: unique field names, dropdowns with options, well-formed
// rules, and resolvable applicability conditions.
func validateEntityType(et EntityTypeSchema) error {
	if et.TypeCode == "" {
		return &LoadError{Reason: "entity type declaration is missing a code"}
	}
	if len(et.Fields) == 0 {
		return &LoadError{TypeCode: et.TypeCode, Reason: "entity type declares no fields"}
	}

	seen := make(map[string]struct{}, len(et.Fields))
	for _, field := range et.Fields {
		if field.Name == "" {
			return &LoadError{TypeCode: et.TypeCode, Reason: "field declaration is missing a name"}
		}
		if _, dup := seen[field.Name]; dup {
			return &LoadError{TypeCode: et.TypeCode, Field: field.Name, Reason: "field declared more than once"}
		}
		seen[field.Name] = struct{}{}

		if err := validateField(et.TypeCode, field); err != nil {
			return err
		}
	}

	// Applicability conditions must resolve inside the same type, and a
	// field cannot gate itself.
	for _, field := range et.Fields {
		if field.DependsOn == "" {
			continue
		}
		if field.DependsOn == field.Name {
			return &LoadError{TypeCode: et.TypeCode, Field: field.Name, Reason: "field depends on itself"}
		}
		if _, ok := seen[field.DependsOn]; !ok {
			return &LoadError{TypeCode: et.TypeCode, Field: field.Name, Reason: fmt.Sprintf("dependsOn references unknown field %q", field.DependsOn)}
		}
	}
	return nil
}

func validateField(typeCode string, field FieldSchema) error {
	if field.Type == FieldTypeDropdown && len(field.Options) == 0 {
		return &LoadError{TypeCode: typeCode, Field: field.Name, Reason: "dropdown field declares no options"}
	}
	if field.Type != FieldTypeDropdown && len(field.Options) > 0 {
		return &LoadError{TypeCode: typeCode, Field: field.Name, Reason: "options are only valid on dropdown fields"}
	}

	for _, rule := range field.Rules {
		switch rule.Kind {
		case RulePattern:
			pattern := rule.Params["pattern"]
			if pattern == "" {
				return &LoadError{TypeCode: typeCode, Field: field.Name, Reason: "pattern rule requires a non-empty expression"}
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return &LoadError{TypeCode: typeCode, Field: field.Name, Reason: fmt.Sprintf("invalid pattern %q: %v", pattern, err)}
			}
		case RuleMinLength, RuleMaxLength:
			if _, err := strconv.Atoi(rule.Params["value"]); err != nil {
				return &LoadError{TypeCode: typeCode, Field: field.Name, Reason: fmt.Sprintf("%s rule requires an integer", rule.Kind)}
			}
		case RuleMin, RuleMax:
			if _, err := strconv.ParseFloat(rule.Params["value"], 64); err != nil {
				return &LoadError{TypeCode: typeCode, Field: field.Name, Reason: fmt.Sprintf("%s rule requires a number", rule.Kind)}
			}
		default:
			return &LoadError{TypeCode: typeCode, Field: field.Name, Reason: fmt.Sprintf("unknown validation rule %q", rule.Kind)}
		}
	}

	if rule := field.ApplicabilityRule(); rule != "" {
		if err := expr.Validate(rule); err != nil {
			return &LoadError{TypeCode: typeCode, Field: field.Name, Reason: fmt.Sprintf("invalid visibility rule: %v", err)}
		}
	}
	return nil
}

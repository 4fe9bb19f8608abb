// Package form owns the mutable state of one open form instance: its
// current values, per-field validation results, and the single validity
// gate callers must pass before persisting.
package form

import (
	"context"
	"errors"

	"github.com/mosaicdocs/sourcemgr/pkg/schema"
	"github.com/mosaicdocs/sourcemgr/pkg/validate"
	"github.com/mosaicdocs/sourcemgr/pkg/visibility"
	"github.com/mosaicdocs/sourcemgr/pkg/visibility/expr"
)

// Status tracks the form's lifecycle. A form starts in StatusCreated and
// ends in exactly one of StatusSubmitted or StatusDiscarded; there is no
// transition out of a terminal status.
type Status string

const (
	StatusCreated   Status = "created"
	StatusSubmitted Status = "submitted"
	StatusDiscarded Status = "discarded"
)

// ErrFinalized is returned by mutating calls on a submitted or discarded
// form.
var ErrFinalized = errors.New("form: state is finalized")

// ErrNotValid is returned by Submit when the form does not pass validation.
var ErrNotValid = errors.New("form: state is not valid")

// Saver persists a validated payload. Submit only ever calls Save with a
// payload that passed Valid.
type Saver interface {
	Save(ctx context.Context, typeCode string, payload map[string]any) (string, error)
}

// State is the controller for one form instance. It is not safe for
// concurrent use; a form belongs to one interaction at a time.
type State struct {
	schema    schema.EntityTypeSchema
	validator *validate.Validator
	evaluator visibility.Evaluator
	values    map[string]any
	results   map[string]validate.Result
	status    Status
}

// Option configures a State at creation time.
type Option func(*State)

// WithValidator substitutes the validator, typically to share one compiled
// pattern cache across many forms.
func WithValidator(v *validate.Validator) Option {
	return func(s *State) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithEvaluator substitutes the applicability evaluator.
func WithEvaluator(e visibility.Evaluator) Option {
	return func(s *State) {
		if e != nil {
			s.evaluator = e
		}
	}
}

// WithInitialValues seeds field values, typically from a previously
// persisted record. Names the schema does not declare are ignored.
func WithInitialValues(values map[string]any) Option {
	return func(s *State) {
		for name, value := range values {
			if _, ok := s.schema.Field(name); ok {
				s.values[name] = value
			}
		}
	}
}

// New creates a form for the given entity type. Every declared field gets a
// type-appropriate empty value unless an initial value overrides it.
func New(et schema.EntityTypeSchema, opts ...Option) *State {
	s := &State{
		schema:    et,
		validator: validate.New(),
		evaluator: expr.New(),
		values:    make(map[string]any, len(et.Fields)),
		results:   make(map[string]validate.Result, len(et.Fields)),
		status:    StatusCreated,
	}
	for _, field := range et.Fields {
		s.values[field.Name] = emptyValue(field.Type)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clearInapplicable()
	return s
}

func emptyValue(t schema.FieldType) any {
	switch t {
	case schema.FieldTypeBoolean:
		return false
	case schema.FieldTypeNumber:
		return nil
	default:
		return ""
	}
}

// Status returns the form's lifecycle status.
func (s *State) Status() Status { return s.status }

// Schema returns the entity type this form was created for.
func (s *State) Schema() schema.EntityTypeSchema { return s.schema }

// Value returns the current value of a field.
func (s *State) Value(name string) (any, bool) {
	value, ok := s.values[name]
	return value, ok
}

// Result returns the last stored validation result for a field, if the
// field has been validated since it was last set or cleared.
func (s *State) Result(name string) (validate.Result, bool) {
	result, ok := s.results[name]
	return result, ok
}

// SetValue stores a new value for the named field, re-validates it, and
// returns the result. Setting a field other fields depend on recomputes
// their applicability: any field that just became inapplicable is reset to
// its empty value so hidden stale data can never block validation or leak
// into the payload.
func (s *State) SetValue(name string, value any) (validate.Result, error) {
	if s.status != StatusCreated {
		return validate.Result{}, ErrFinalized
	}
	field, ok := s.schema.Field(name)
	if !ok {
		return validate.Result{}, &schema.UnknownFieldError{TypeCode: s.schema.TypeCode, Field: name}
	}

	s.values[name] = value
	result := s.validator.Field(field, value)
	s.results[name] = result

	s.clearInapplicable()
	return result, nil
}

// Applicable reports whether the named field currently applies, i.e. its
// dependency condition (if any) is met against the current values.
func (s *State) Applicable(name string) bool {
	field, ok := s.schema.Field(name)
	if !ok {
		return false
	}
	return s.applicable(field)
}

func (s *State) applicable(field schema.FieldSchema) bool {
	rule := field.ApplicabilityRule()
	if rule == "" {
		return true
	}
	ctx := visibility.Context{Values: s.values}
	ok, err := s.evaluator.Eval(field.Name, rule, ctx)
	if err != nil {
		// Rules are checked at schema load; an evaluation error here means
		// a custom evaluator rejected the rule. Failing open keeps the
		// field editable rather than silently hiding it.
		return true
	}
	return ok
}

func (s *State) clearInapplicable() {
	// Clearing one field can flip another conditional field inapplicable
	// further up the declaration order, so repeat until a pass clears
	// nothing.
	for changed := true; changed; {
		changed = false
		for _, field := range s.schema.Fields {
			if !field.Conditional() || s.applicable(field) {
				continue
			}
			empty := emptyValue(field.Type)
			if s.values[field.Name] != empty {
				s.values[field.Name] = empty
				changed = true
			}
			delete(s.results, field.Name)
		}
	}
}

// Valid re-validates every visible, applicable field and reports whether
// all of them pass. Inapplicable conditional fields are skipped entirely,
// whatever their required flag says.
func (s *State) Valid() bool {
	valid := true
	for _, field := range s.schema.Fields {
		if !field.Visible || !s.applicable(field) {
			continue
		}
		result := s.validator.Field(field, s.values[field.Name])
		s.results[field.Name] = result
		if !result.Valid {
			valid = false
		}
	}
	return valid
}

// Payload returns a shallow copy of the current values restricted to
// visible, applicable fields. Inapplicable and invisible fields are omitted
// rather than submitted empty, so persisted records never accumulate stale
// disabled-field data. Implicit-stage fields are system-filled, never
// prompted; they appear only once something has set them.
func (s *State) Payload() map[string]any {
	payload := make(map[string]any, len(s.values))
	for _, field := range s.schema.Fields {
		if !field.Visible || !s.applicable(field) {
			continue
		}
		if field.Stage == schema.StageImplicit && s.values[field.Name] == emptyValue(field.Type) {
			continue
		}
		payload[field.Name] = s.values[field.Name]
	}
	return payload
}

// Submit validates the form, hands the payload to the saver, and moves the
// form to its terminal StatusSubmitted. The form stays open if validation
// or the save fails.
func (s *State) Submit(ctx context.Context, saver Saver) (string, error) {
	if s.status != StatusCreated {
		return "", ErrFinalized
	}
	if !s.Valid() {
		return "", ErrNotValid
	}
	id, err := saver.Save(ctx, s.schema.TypeCode, s.Payload())
	if err != nil {
		return "", err
	}
	s.status = StatusSubmitted
	return id, nil
}

// Discard abandons the form, moving it to its terminal StatusDiscarded.
func (s *State) Discard() error {
	if s.status != StatusCreated {
		return ErrFinalized
	}
	s.status = StatusDiscarded
	return nil
}

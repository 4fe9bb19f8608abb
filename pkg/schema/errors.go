package schema

import "fmt"

// LoadError reports a structural problem in a schema declaration. Loading
// fails closed on the first one found; the process must not continue with a
// partially loaded registry.
type LoadError struct {
	Source   string // file the declaration came from, when known
	TypeCode string
	Field    string
	Reason   string
}

func (e *LoadError) Error() string {
	msg := "schema: " + e.Reason
	if e.TypeCode != "" {
		msg += fmt.Sprintf(" (type %q", e.TypeCode)
		if e.Field != "" {
			msg += fmt.Sprintf(", field %q", e.Field)
		}
		msg += ")"
	} else if e.Field != "" {
		msg += fmt.Sprintf(" (field %q)", e.Field)
	}
	if e.Source != "" {
		msg += " in " + e.Source
	}
	return msg
}

// UnknownTypeError reports a lookup for an entity type the registry does not
// hold. It indicates a caller bug, never user input.
type UnknownTypeError struct {
	TypeCode string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("schema: unknown entity type %q", e.TypeCode)
}

// UnknownFieldError reports an access to a field name the entity type does
// not declare.
type UnknownFieldError struct {
	TypeCode string
	Field    string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("schema: entity type %q has no field %q", e.TypeCode, e.Field)
}

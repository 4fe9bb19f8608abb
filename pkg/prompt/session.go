package prompt

import (
	"context"
	"fmt"

	"github.com/mosaicdocs/sourcemgr/pkg/form"
	"github.com/mosaicdocs/sourcemgr/pkg/layout"
	"github.com/mosaicdocs/sourcemgr/pkg/schema"
)

// Session walks fields in layout order and feeds the answers into a form,
// re-prompting while a value fails validation.
type Session struct {
	driver Driver
}

func NewSession(driver Driver) *Session {
	return &Session{driver: driver}
}

// Fill prompts for the given fields, column by column in layout order.
// Invisible, implicit, and currently-inapplicable fields are skipped; a
// field that becomes inapplicable mid-walk (because an earlier answer
// changed its dependency) is skipped too.
func (s *Session) Fill(ctx context.Context, state *form.State, fields []schema.FieldSchema) error {
	plan := layout.Derive(fields)
	for _, column := range plan.Columns {
		for _, field := range column.Fields {
			if !field.Visible || field.Stage == schema.StageImplicit {
				continue
			}
			if !state.Applicable(field.Name) {
				continue
			}
			if err := s.ask(ctx, state, field); err != nil {
				return err
			}
		}
	}
	return nil
}

// FillAll prompts for every field the form's schema declares.
func (s *Session) FillAll(ctx context.Context, state *form.State) error {
	return s.Fill(ctx, state, state.Schema().Fields)
}

func (s *Session) ask(ctx context.Context, state *form.State, field schema.FieldSchema) error {
	for {
		value, err := s.prompt(ctx, state, field)
		if err != nil {
			return err
		}
		result, err := state.SetValue(field.Name, value)
		if err != nil {
			return err
		}
		if result.Valid {
			return nil
		}
		if err := s.driver.Info(ctx, result.Message); err != nil {
			return err
		}
	}
}

func (s *Session) prompt(ctx context.Context, state *form.State, field schema.FieldSchema) (any, error) {
	message := field.Label
	if field.Required {
		message += " *"
	}

	switch field.Type {
	case schema.FieldTypeDropdown:
		index, err := s.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      field.Options,
			DefaultIndex: currentOptionIndex(state, field),
			Help:         field.HintText,
		})
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(field.Options) {
			return "", nil
		}
		return field.Options[index], nil

	case schema.FieldTypeBoolean:
		current, _ := state.Value(field.Name)
		def, _ := current.(bool)
		return s.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: def, Help: field.HintText})

	case schema.FieldTypeTextarea:
		return s.driver.TextArea(ctx, InputConfig{
			Message: message,
			Default: currentString(state, field.Name),
			Help:    field.HintText,
		})

	default:
		return s.driver.Input(ctx, InputConfig{
			Message: message,
			Default: currentString(state, field.Name),
			Help:    field.HintText,
		})
	}
}

func currentString(state *form.State, name string) string {
	value, ok := state.Value(name)
	if !ok || value == nil {
		return ""
	}
	if text, ok := value.(string); ok {
		return text
	}
	return fmt.Sprint(value)
}

func currentOptionIndex(state *form.State, field schema.FieldSchema) int {
	current := currentString(state, field.Name)
	for i, option := range field.Options {
		if option == current {
			return i
		}
	}
	return -1
}

// Package schema loads and serves the declarative field definitions that
// drive every form in the application. Declarations live in YAML or JSON
// files as a master field list plus entity types referencing those fields
// by name; the loader resolves the references, validates the result, and
// produces an immutable Registry.
package schema

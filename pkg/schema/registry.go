package schema

// Registry holds every loaded EntityTypeSchema and provides read-only lookup.
// It is immutable after construction and therefore safe for unsynchronised
// concurrent readers.
type Registry struct {
	order []string
	types map[string]EntityTypeSchema
}

// NewRegistry builds a registry from already-validated entity type schemas,
// preserving their declaration order. It rejects duplicate type codes and
// runs the same structural checks the file loader applies, so programmatic
// declarations fail just as fast as file-based ones.
func NewRegistry(types []EntityTypeSchema) (*Registry, error) {
	r := &Registry{types: make(map[string]EntityTypeSchema, len(types))}
	for _, et := range types {
		if err := validateEntityType(et); err != nil {
			return nil, err
		}
		if _, exists := r.types[et.TypeCode]; exists {
			return nil, &LoadError{TypeCode: et.TypeCode, Reason: "duplicate entity type code"}
		}
		r.order = append(r.order, et.TypeCode)
		r.types[et.TypeCode] = et
	}
	return r, nil
}

// Schema returns the entity type registered under code.
func (r *Registry) Schema(code string) (EntityTypeSchema, error) {
	et, ok := r.types[code]
	if !ok {
		return EntityTypeSchema{}, &UnknownTypeError{TypeCode: code}
	}
	return et, nil
}

// Types lists the registered entity types in declaration order.
func (r *Registry) Types() []TypeInfo {
	out := make([]TypeInfo, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, TypeInfo{Code: code, DisplayName: r.types[code].DisplayName})
	}
	return out
}

// Has reports whether an entity type is registered.
func (r *Registry) Has(code string) bool {
	_, ok := r.types[code]
	return ok
}

// Fields returns the type's fields in declared order, minus any whose name
// appears in exclude. Excluding a name the type does not declare is a no-op:
// the exclude list is a claim ("these fields are handled elsewhere"), not a
// lookup.
func (r *Registry) Fields(code string, exclude ...string) ([]FieldSchema, error) {
	et, err := r.Schema(code)
	if err != nil {
		return nil, err
	}
	if len(exclude) == 0 {
		return append([]FieldSchema(nil), et.Fields...), nil
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}

	out := make([]FieldSchema, 0, len(et.Fields))
	for _, field := range et.Fields {
		if _, excluded := skip[field.Name]; excluded {
			continue
		}
		out = append(out, field)
	}
	return out, nil
}

// DialogFields returns the fields collected by the creation dialog.
func (r *Registry) DialogFields(code string) ([]FieldSchema, error) {
	return r.stageFields(code, StageDialog)
}

// MetadataFields returns the fields collected by the metadata form.
func (r *Registry) MetadataFields(code string) ([]FieldSchema, error) {
	return r.stageFields(code, StageMetadata)
}

func (r *Registry) stageFields(code string, stage Stage) ([]FieldSchema, error) {
	et, err := r.Schema(code)
	if err != nil {
		return nil, err
	}
	out := make([]FieldSchema, 0, len(et.Fields))
	for _, field := range et.Fields {
		if field.Stage == stage {
			out = append(out, field)
		}
	}
	return out, nil
}

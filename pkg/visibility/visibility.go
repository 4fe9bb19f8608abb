package visibility

// Evaluator decides whether a field applies given its applicability rule
// and the form's current values.
type Evaluator interface {
	Eval(fieldName, rule string, ctx Context) (bool, error)
}

// Context carries the inputs an Evaluator reads from. Values holds the
// form's current field values; Extras lets callers inject out-of-band
// context such as the active entity type.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(fieldName, rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(fieldName, rule string, ctx Context) (bool, error) {
	return fn(fieldName, rule, ctx)
}

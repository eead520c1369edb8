// Package compose stitches an assignments fragment, an entry point fragment
// and any number of fact fragments into one SQL statement with one row per
// randomisation unit.
//
// Compose is a pure function: no I/O, no shared state. It is safe to call
// concurrently with independent inputs.
package compose

// Input holds every fragment and mapping for one composition.
// Facts are projected in slice order.
type Input struct {
	Assignments        string
	AssignmentsMapping AssignmentsMapping
	EntryPoint         string
	EntryPointMapping  EntryPointMapping
	Facts              []FactEntry
}

// Option configures Compose and Plan.
type Option func(*options)

type options struct {
	strict bool
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStrictFragments rejects fragments whose terminal select does not name
// a table (fragment.ErrNoTerminalSelect). By default such fragments are
// composed anyway and the statement fails when executed.
func WithStrictFragments() Option {
	return func(o *options) {
		o.strict = true
	}
}

// Compose returns the composed SQL statement.
//
// Errors are *MappingError values (joined) for unusable mappings,
// fragment.ErrNoTerminalSelect in strict mode, and *plan.ValidationError
// when fragments collide (for example two facts exposing the same table).
func Compose(in Input, opts ...Option) (string, error) {
	p, err := Plan(in, opts...)
	if err != nil {
		return "", err
	}
	return NewRenderer().Render(p)
}

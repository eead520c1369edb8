package plan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateStage reports two stages defining the same name, or a
	// fragment exposing a table under a generated stage's name.
	ErrDuplicateStage = errors.New("duplicate stage name")

	// ErrUndefinedStage reports a reference to a stage that is not defined
	// earlier in the plan.
	ErrUndefinedStage = errors.New("undefined stage")

	// ErrInvalidStage reports a structurally unusable stage.
	ErrInvalidStage = errors.New("invalid stage")
)

// ValidationError collects every problem found in a plan.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "invalid plan: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return e.Problems
}

// Validate checks that a plan can be rendered as one WITH clause whose
// stages only reference earlier stages.
//
// Validate is a pure function with no side effects. It returns nil or a
// *ValidationError.
func Validate(p Plan) error {
	v := &validator{
		defined: make(map[string]string),
		exposed: make(map[string]string),
	}

	if len(p.Stages) == 0 {
		v.addProblem(ErrInvalidStage, "plan has no stages")
	}
	for i, s := range p.Stages {
		v.validateStage(i, s)
	}
	if p.Terminal == "" {
		v.addProblem(ErrInvalidStage, "plan has no terminal stage")
	} else {
		v.requireDefined("terminal select", p.Terminal)
	}

	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	// defined maps a stage name to the stage that defined it.
	defined map[string]string
	// exposed maps a fragment's exposed table to the first fragment
	// reading it. Fragments may share a table.
	exposed  map[string]string
	problems []error
}

func (v *validator) addProblem(kind error, format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)))
}

func (v *validator) define(owner, name string) {
	if prev, ok := v.defined[name]; ok {
		v.addProblem(ErrDuplicateStage, "%q defined by %s and %s", name, prev, owner)
		return
	}
	if frag, ok := v.exposed[name]; ok {
		v.addProblem(ErrDuplicateStage, "%q exposed by %s is also defined by %s", name, frag, owner)
		return
	}
	v.defined[name] = owner
}

func (v *validator) requireDefined(owner, name string) {
	if _, ok := v.defined[name]; !ok {
		v.addProblem(ErrUndefinedStage, "%s references %q before it is defined", owner, name)
	}
}

func (v *validator) validateStage(index int, s Stage) {
	switch st := s.(type) {
	case Block:
		v.validateBlock(st)
	case *Block:
		v.validateBlock(*st)
	case Exposures:
		v.validateNamed(index, st.Name)
	case *Exposures:
		v.validateNamed(index, st.Name)
	case FactMerge:
		v.validateFactMerge(index, st)
	case *FactMerge:
		v.validateFactMerge(index, *st)
	case FinalMerge:
		v.validateFinalMerge(index, st)
	case *FinalMerge:
		v.validateFinalMerge(index, *st)
	default:
		v.addProblem(ErrInvalidStage, "stage %d has unsupported type %T", index, s)
	}
}

// validateBlock records the block's exposed table so no generated stage
// can shadow it. Blocks with no exposed name are allowed.
func (v *validator) validateBlock(b Block) {
	if b.Exposes == "" {
		return
	}
	if owner, ok := v.defined[b.Exposes]; ok {
		v.addProblem(ErrDuplicateStage, "%q exposed by %s is also defined by %s", b.Exposes, b.Source, owner)
		return
	}
	if _, ok := v.exposed[b.Exposes]; !ok {
		v.exposed[b.Exposes] = b.Source
	}
}

func (v *validator) validateNamed(index int, name string) bool {
	if name == "" {
		v.addProblem(ErrInvalidStage, "stage %d has no name", index)
		return false
	}
	v.define(fmt.Sprintf("stage %d", index), name)
	return true
}

func (v *validator) validateFactMerge(index int, f FactMerge) {
	v.requireDefined("stage "+f.Name, f.Exposures)
	if len(f.Columns) == 0 {
		v.addProblem(ErrInvalidStage, "stage %q has no fact columns", f.Name)
	}
	v.validateNamed(index, f.Name)
}

func (v *validator) validateFinalMerge(index int, m FinalMerge) {
	v.requireDefined("stage "+m.Name, m.Exposures)
	for _, f := range m.Facts {
		v.requireDefined("stage "+m.Name, f.Name)
	}
	v.validateNamed(index, m.Name)
}

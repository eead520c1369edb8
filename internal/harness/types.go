package harness

import "github.com/ludovico-lanni/sql-4-exp-analysis/internal/store"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when composition behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	// SQL is the composed statement. Empty when composition failed.
	SQL string `json:"sql,omitempty"`

	// Errors contains one message per failed expectation.
	Errors []string `json:"errors,omitempty"`

	// Stages holds the rows returned for every stage an assertion queried,
	// keyed by stage name.
	Stages map[string]*store.ResultSet `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Stages: make(map[string]*store.ResultSet),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

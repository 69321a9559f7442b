package harness

import "github.com/roach88/encounterlab/internal/analysis"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held and every
	// batch size produced the same digest.
	Pass bool `json:"pass"`

	// Report is the report of the first batch size.
	Report *analysis.Report `json:"-"`

	// Digests maps each batch size to its report digest.
	Digests map[int]string `json:"digests"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Digests: make(map[int]string),
		Errors:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

package harness

// Result captures the outcome of running one scenario.
type Result struct {
	Scenario *Scenario

	// Render and Fingerprint describe the expanded tree; SQL and
	// Params the lowered statement. All are empty when Err is set.
	Render      string
	Fingerprint string
	SQL         string
	Params      []any

	// Joins is the number of join operators in the expanded tree.
	Joins int

	// Err is the pipeline error, if any stage failed.
	Err error

	// Failures lists expectation violations. Empty means the scenario
	// passed.
	Failures []string
}

// Passed reports whether all expectations held.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden, in addition to evaluating
// the scenario's own expectations.
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	res, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %q: %v", scenario.Name, err)
	}
	for _, f := range res.Failures {
		t.Errorf("scenario %q: %s", scenario.Name, f)
	}
	if res.Err == nil {
		g := goldie.New(t,
			goldie.WithFixtureDir("testdata/golden"),
			goldie.WithNameSuffix(".golden"),
		)
		g.Assert(t, scenario.Name, snapshot(res))
	}
	return res
}

// snapshot renders the reviewable outcome of a scenario: the canonical
// expanded tree and the generated SQL.
func snapshot(res *Result) []byte {
	var b strings.Builder
	b.WriteString("render:\n")
	b.WriteString(strings.TrimRight(res.Render, "\n"))
	b.WriteString("\n\nsql: ")
	b.WriteString(res.SQL)
	b.WriteString("\nparams: ")
	b.WriteString(fmt.Sprintf("%v", res.Params))
	b.WriteString("\n")
	return []byte(b.String())
}

package harness

import (
	"fmt"
	"strings"

	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// evaluate checks a result against the scenario's expectations and
// returns the violations. All expectations are checked; evaluation
// never stops at the first failure.
func evaluate(scenario *Scenario, res *Result) []string {
	failures := res.Failures
	exp := scenario.Expect

	if exp.Error != "" {
		if res.Err == nil {
			failures = append(failures, fmt.Sprintf("expected an error containing %q, but the pipeline succeeded", exp.Error))
		} else if !strings.Contains(res.Err.Error(), exp.Error) {
			failures = append(failures, fmt.Sprintf("error %q does not contain %q", res.Err, exp.Error))
		}
		return failures
	}

	if res.Err != nil {
		return append(failures, fmt.Sprintf("pipeline failed: %v", res.Err))
	}

	if exp.Joins != nil && res.Joins != *exp.Joins {
		failures = append(failures, fmt.Sprintf("expected %d joins, got %d", *exp.Joins, res.Joins))
	}
	for _, want := range exp.SQLContains {
		if !strings.Contains(res.SQL, want) {
			failures = append(failures, fmt.Sprintf("SQL does not contain %q", want))
		}
	}
	return failures
}

// countJoins counts join operators, inner and group, in a tree.
func countJoins(n queryir.Node) int {
	switch x := n.(type) {
	case nil:
		return 0
	case *queryir.Join:
		return 1 + countJoins(x.Outer) + countJoins(x.Inner)
	case *queryir.GroupJoin:
		return 1 + countJoins(x.Outer) + countJoins(x.Inner)
	case *queryir.Where:
		return countJoins(x.Source)
	case *queryir.Select:
		return countJoins(x.Source)
	case *queryir.OrderBy:
		return countJoins(x.Source)
	case *queryir.ThenBy:
		return countJoins(x.Source)
	case *queryir.SelectMany:
		return countJoins(x.Source)
	case *queryir.DefaultIfEmpty:
		return countJoins(x.Source)
	case *queryir.Distinct:
		return countJoins(x.Source)
	case *queryir.Skip:
		return countJoins(x.Source)
	case *queryir.Take:
		return countJoins(x.Source)
	case *queryir.First:
		return countJoins(x.Source)
	case *queryir.Single:
		return countJoins(x.Source)
	case *queryir.Any:
		return countJoins(x.Source)
	case *queryir.Tracking:
		return countJoins(x.Source)
	case *queryir.MaterializeCollection:
		return countJoins(x.Source)
	default:
		return 0
	}
}

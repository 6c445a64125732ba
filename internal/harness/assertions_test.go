package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func TestEvaluateExpectations(t *testing.T) {
	tests := []struct {
		name   string
		expect Expect
		result Result
		want   []string
	}{
		{
			name:   "zero expect passes on success",
			result: Result{SQL: "SELECT 1", Joins: 1},
		},
		{
			name:   "unexpected pipeline error fails",
			result: Result{Err: errors.New("boom")},
			want:   []string{"pipeline failed: boom"},
		},
		{
			name:   "expected error matches",
			expect: Expect{Error: "no member"},
			result: Result{Err: errors.New(`entity Order has no member "Shipper"`)},
		},
		{
			name:   "expected error with wrong message fails",
			expect: Expect{Error: "depth"},
			result: Result{Err: errors.New("boom")},
			want:   []string{`error "boom" does not contain "depth"`},
		},
		{
			name:   "expected error but pipeline succeeded",
			expect: Expect{Error: "boom"},
			result: Result{SQL: "SELECT 1"},
			want:   []string{`expected an error containing "boom", but the pipeline succeeded`},
		},
		{
			name:   "join count mismatch",
			expect: Expect{Joins: intp(2)},
			result: Result{SQL: "SELECT 1", Joins: 1},
			want:   []string{"expected 2 joins, got 1"},
		},
		{
			name:   "sql substrings checked individually",
			expect: Expect{SQLContains: []string{"INNER JOIN", "LEFT JOIN"}},
			result: Result{SQL: "SELECT x FROM a INNER JOIN b"},
			want:   []string{`SQL does not contain "LEFT JOIN"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &Scenario{Name: tt.name, Expect: tt.expect}
			got := evaluate(sc, &tt.result)
			assert.Equal(t, tt.want, got)
		})
	}
}

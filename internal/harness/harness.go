package harness

import (
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"

	"github.com/kestrel-orm/kestrel/internal/compiler"
	"github.com/kestrel-orm/kestrel/internal/expand"
	"github.com/kestrel-orm/kestrel/internal/model"
	"github.com/kestrel-orm/kestrel/internal/planfile"
	"github.com/kestrel-orm/kestrel/internal/queryir"
	"github.com/kestrel-orm/kestrel/internal/querysql"
)

// Run executes a scenario through the full pipeline and evaluates its
// expectations.
//
// The returned error covers infrastructure problems only (unreadable
// or invalid model file). Pipeline failures land in Result.Err so that
// scenarios can expect them.
func Run(scenario *Scenario) (*Result, error) {
	m, err := loadModel(scenario.ModelPath())
	if err != nil {
		return nil, err
	}
	res := &Result{Scenario: scenario}
	runPipeline(m, scenario, res)
	res.Failures = evaluate(scenario, res)
	return res, nil
}

func runPipeline(m *model.Model, scenario *Scenario, res *Result) {
	node, err := planfile.Build(m, &scenario.Plan)
	if err != nil {
		res.Err = err
		return
	}

	ex := expand.New(m)
	expanded, err := ex.Expand(node)
	if err != nil {
		res.Err = err
		return
	}

	res.Render = queryir.Render(expanded)
	res.Fingerprint = queryir.Fingerprint(expanded)
	res.Joins = countJoins(expanded)

	// Expansion must be a fixpoint: feeding the output back in may not
	// change the canonical form.
	again, err := ex.Expand(expanded)
	if err != nil {
		res.Err = fmt.Errorf("re-expansion failed: %w", err)
		return
	}
	if fp := queryir.Fingerprint(again); fp != res.Fingerprint {
		res.Failures = append(res.Failures,
			fmt.Sprintf("expansion is not idempotent: fingerprint %s became %s", res.Fingerprint, fp))
	}

	sqlText, params, err := querysql.NewSQLCompiler(m).Compile(expanded)
	if err != nil {
		res.Err = err
		return
	}
	res.SQL = sqlText
	res.Params = params
}

func loadModel(path string) (*model.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: reading model: %w", err)
	}
	v := cuecontext.New().CompileString(string(data))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("harness: compiling model CUE: %w", err)
	}
	m, err := compiler.CompileModel(v)
	if err != nil {
		return nil, fmt.Errorf("harness: compiling model: %w", err)
	}
	if errs := compiler.Validate(m); len(errs) > 0 {
		return nil, fmt.Errorf("harness: invalid model: %s", errs[0].Error())
	}
	return m, nil
}

// Package harness runs declarative conformance scenarios against the
// full query-compilation pipeline.
//
// A scenario is a YAML file naming an entity model, an inline query
// plan, and expectations about the result. The harness compiles the
// model, resolves and expands the plan, lowers it to SQL, and checks
// the expectations. Every successful expansion is additionally
// re-expanded and its fingerprint compared, so idempotency is verified
// on every scenario without declaring it.
//
// Golden files capture the canonical rendering and the generated SQL
// for review; regenerate them with:
//
//	go test ./internal/harness -update
package harness

// Package queryir defines the operator-tree intermediate representation
// that the navigation-expansion pass consumes and produces.
//
// Three sealed interfaces make up the IR:
//
//   - Node: query operators (entity sources, filters, projections,
//     joins, flattens, terminal operators)
//   - Expr: expressions inside operator lambdas (parameters, member
//     accesses, tuple construction and field access, constants,
//     comparisons, bound navigation references)
//   - Type: element and expression types (entity references, scalars,
//     composite tuples, sequences)
//
// All three use the marker-method pattern: only types in this package
// implement them, so consumers can type-switch exhaustively and the
// "unsupported kind" failure class is confined to one defensive arm.
//
// Expressions identify bound variables by opaque generated IDs carried
// on Parameter, never by pointer identity or by display name. Renaming
// a parameter is a pure substitution over IDs (see ReplaceParameter).
package queryir

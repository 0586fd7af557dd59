// Package document models page content as a JSON-shaped tree and provides the
// path selectors and in-place patching used to rewrite it.
//
// A node is one of map[string]any, []any, string, json.Number, float64, bool
// or nil. Nodes carry no parent pointers; locations are addressed purely by
// selectors.
//
// Selectors deliberately implement a small deterministic subset of JSONPath:
// an optional leading "$", named field steps (".name" or a bare leading
// "name") and integer index steps ("[3]" or ".[3]"). There are no wildcards,
// filters, slices or recursive descent, so evaluating a selector yields at
// most one location.
package document

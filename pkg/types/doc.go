// Package types defines the shared public types for working with ECMA-335
// metadata editing sessions: typed errors with stable categories, the
// reference-handling strategies used by every removal API, and the format
// limits enforced during validation and writing.
//
// Design goals:
//   - Typed errors with stable categories (malformed/invalid-op/conflict/...).
//   - Small, copyable enums instead of stringly-typed options.
//   - Never panic on malformed input; everything surfaces as an error value.
//
// This package has no dependencies beyond the standard library.
package types

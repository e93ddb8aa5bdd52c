// Package assembly is the editing facade over a parsed .NET image: one
// read-only view plus one pending change set, exposed through heap and
// table mutation primitives, reference-aware removal, native
// import/export helpers, validation, and final serialization.
//
// The intended session is Open, edit, ValidateAndApply, WriteToFile,
// Close. The source file is never modified; writing produces a new
// image at the target path.
package assembly

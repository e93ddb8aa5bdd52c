// Package changes aggregates every pending edit against one assembly
// into a single copy-on-write change set.
//
// # Overview
//
// AssemblyChanges owns the four heap trackers from cil/heaps, one
// operation log per touched metadata table from cil/oplog, the native
// PE import/export registrations, and the method bodies stored during
// the session. The original View is never mutated; the writer reads
// the View and this change set together to produce the output binary.
//
// # Seeding
//
// NewFromView seeds the heap trackers with the view's content sizes
// and snapshots the original row count of every table, so appended
// heap indices and inserted RIDs continue exactly where the original
// data ends. NewEmpty seeds heaps with the mandatory null slot only
// and is the starting point for assemblies built from scratch.
//
// # Method Bodies
//
// Stored method bodies receive placeholder RVAs from a reserved range
// starting at 0xF0000000, one sequential ID per body. Real code never
// lives that high in an image, so the writer can recognize a
// placeholder in a MethodDef RVA column and substitute the real RVA
// once the code section is laid out.
//
// # Native Directories
//
// NativeImports and NativeExports collect import/export registrations
// with the same call-time validation the metadata primitives get:
// ordinal 0 is rejected, required names must be non-empty, and
// duplicate symbols are errors rather than silent overwrites.
package changes

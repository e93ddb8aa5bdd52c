// Package heaps tracks pending changes for the four ECMA-335 metadata heaps.
//
// # Overview
//
// A loaded assembly view is immutable. All heap edits made during a session
// accumulate in per-heap change trackers instead of touching the original
// bytes. Each heap kind has its own tracker with the index arithmetic of its
// wire format:
//
//   - StringChanges: #Strings, UTF-8 with null terminators, byte offsets
//   - BlobChanges: #Blob, compressed length prefix + data, byte offsets
//   - GUIDChanges: #GUID, fixed 16-byte slots, 1-based slot numbers
//   - UserStringChanges: #US, UTF-16LE + terminal byte, byte offsets
//
// # Index Assignment
//
// Append operations hand out the final index immediately. The tracker keeps a
// running next-index counter seeded with the original heap's size, so the
// index returned by Add is the offset (or slot) the value will occupy in the
// written heap:
//
//	sc := heaps.NewStringChanges(view.StringsSize())
//	hello := sc.Add("Hello") // original size
//	world := sc.Add("World") // hello + len("Hello") + 1
//
// Indices never shift afterwards. Removing an appended entry frees its space
// only once the remapper compacts the appended sequence and rewrites the rows
// that reference it.
//
// # Modifications and Removals
//
// AddModification records a point replacement without moving any index.
// Remove distinguishes the two ranges: original entries get a tombstone that
// the writer zero-fills in place, appended entries are simply marked and
// dropped during compaction (they were never persisted). Neither operation
// fails at this layer; dangling references are the validation engine's job.
//
// # Replacement
//
// ReplaceHeap swaps in a caller-supplied raw heap and discards all prior
// session state. Subsequent operations treat the replacement buffer as the
// original.
//
// # Thread Safety
//
// Trackers are not safe for concurrent use. The owning session serializes
// access.
package heaps

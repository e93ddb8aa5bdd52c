// Package writer serializes an edited assembly back to a complete PE image.
//
// The original file bytes are never rewritten in place. The writer builds a
// fresh metadata image (root, streams, tables) plus any new method bodies and
// native directories, places all of it in one appended section, zeroes the
// old metadata region, and patches the PE headers to point at the new data.
// Everything outside the metadata (native code, resources, certificates the
// edit invalidated aside) survives byte for byte.
//
// The writer consumes a change set the facade has already validated and
// remapped: appended heap entries are compacted, table operations carry
// final row references, and the operation logs replay cleanly last write
// wins. Original rows are remapped on the way out; rows carried in the
// change set are encoded as they stand.
package writer

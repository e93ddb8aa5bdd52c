// Package builder is the convenience layer for composing new metadata
// during an editing session. A Context wraps one Assembly, pre-tracks the
// next RID for every table, deduplicates strings and blobs added in the
// session, and encodes structured signatures into blob entries. Finish
// hands the assembly back for validation and writing; the context cannot
// be used afterward.
package builder

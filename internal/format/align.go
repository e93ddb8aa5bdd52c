package format

// Alignment utilities for PE and metadata layout. Metadata streams and the
// method-body region align to 4 bytes; PE sections align to the image's file
// and section alignment values from the optional header.

// Align4 returns n aligned up to the next 4-byte boundary.
//
// Example:
//
//	Align4(1) = 4
//	Align4(4) = 4
//	Align4(5) = 8
func Align4(n int) int {
	return (n + 3) &^ 3
}

// AlignUp returns n aligned up to the next multiple of align. align must be a
// power of two; PE file and section alignments always are.
func AlignUp(n, align uint32) uint32 {
	mask := align - 1
	return (n + mask) &^ mask
}

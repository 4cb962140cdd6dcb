package mmr

import (
	"math"
	"math/bits"
)

// LeafCount returns the number of leaves in the largest range whose size is
// <= the supplied size. See also PeaksBitmap.
//
// This can safely be used to obtain a leaf ordinal *only* when size is known
// to be valid. If in any doubt, instead do:
//
//	ordinal = LeafCount(FirstMMRSize(pos)) - 1
func LeafCount(size uint64) uint64 {
	return PeaksBitmap(size)
}

// FirstMMRSize returns the first complete range size that contains the
// provided position. Sizes are the result of *adding* nodes, and because each
// leaf may back fill interior nodes the range of valid sizes is not
// continuous.
//
// The outputs for the positions 1 through 11 are
//
//	[1, 3, 3, 4, 7, 7, 7, 8, 10, 10, 11]
//
//	2        7
//	       /   \
//	1     3     6      10
//	     / \   / \    /  \
//	0   1   2 4   5  8    9 11
func FirstMMRSize(pos uint64) uint64 {
	size := pos
	h0 := PosHeight(size)
	for i := 0; i < MaxHeight; i++ {
		h1 := PosHeight(size + 1)
		if h1 <= h0 {
			break
		}
		size++
		h0 = h1
	}
	return size
}

// PeaksBitmap returns a bit mask where a 1 corresponds to a peak and the
// position of the bit is the height of that peak. The resulting value is also
// the count of leaves. This is due to the binary nature of the tree.
//
// For example, a range with size 19 has 11 leaves
//
//	         15
//	      /       \
//	    7          14
//	  /   \       /   \
//	 3     6    10     13     18
//	/ \   / \  /  \   /  \   /  \
//	1 2  4   5 8   9 11  12 16  17 19
//
// PeaksBitmap(19) returns 0b1011: reading from the right (low bit), the
// lowest peak is at height 0, the next at height 1, then the last and highest
// at height 3.
//
// If the provided size is invalid, the returned map is for the largest valid
// size less than it.
func PeaksBitmap(size uint64) uint64 {
	if size == 0 {
		return 0
	}
	pos := size
	peakSize := uint64(math.MaxUint64) >> bits.LeadingZeros64(size)
	peakMap := uint64(0)
	for peakSize > 0 {
		peakMap <<= 1
		if pos >= peakSize {
			pos -= peakSize
			peakMap |= 1
		}
		peakSize >>= 1
	}
	return peakMap
}

// LeafPosition returns the position of the leaf with the given zero based
// ordinal. Leaves are numbered consecutively, ignoring interior nodes.
func LeafPosition(ordinal uint64) uint64 {
	// the position of a leaf is one more than the size of the range that
	// holds all the leaves before it.
	return ElementsCount(ordinal) + 1
}

// LeafOrdinal is the inverse of LeafPosition. It returns false if pos is not
// a leaf.
func LeafOrdinal(pos uint64) (uint64, bool) {
	if pos == 0 || PosHeight(pos) != 0 {
		return 0, false
	}
	return LeafCount(FirstMMRSize(pos)) - 1, true
}

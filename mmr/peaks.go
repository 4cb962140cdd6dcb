package mmr

import "fmt"

// Peaks returns the positions of the mountain peaks for a range holding size
// nodes. This is completely deterministic given a valid size. If size is
// zero, or not a size any sequence of appends can produce, it returns nil.
//
// The peaks are listed in ascending order of position. The highest peak has
// the lowest position and is listed first.
//
// So given the example below, which has a size of 18, the peaks are [15, 18]
//
//	3            15
//	           /    \
//	          /      \
//	         /        \
//	2       7          14
//	      /   \       /   \
//	1    3     6    10     13      18
//	    / \  /  \   / \   /  \    /  \
//	0  1   2 4   5 8   9 11   12 16   17
func Peaks(size uint64) []uint64 {
	peaks, remainder := findPeaks(size)
	if remainder != 0 {
		return nil
	}
	return peaks
}

// IsValidSize is true if size is a node count reachable by appending leaves
// to an empty range. Zero is valid.
func IsValidSize(size uint64) bool {
	_, remainder := findPeaks(size)
	return remainder == 0
}

// findPeaks repeatedly subtracts the largest perfect tree size, 2^(h+1) - 1,
// that fits in what remains of size. Each subtraction places a peak. A non
// zero remainder means size is not a valid range size.
func findPeaks(size uint64) ([]uint64, uint64) {
	var peaks []uint64
	var pos uint64

	remaining := size
	for h := BitLength64(size); h > 0 && remaining > 0; h-- {
		treeSize := uint64(1)<<h - 1
		if treeSize > remaining {
			continue
		}
		pos += treeSize
		remaining -= treeSize
		peaks = append(peaks, pos)
	}
	return peaks, remaining
}

// PeakIndex returns the index in peaks of the peak at pos, or -1 if pos is
// not a peak.
func PeakIndex(peaks []uint64, pos uint64) int {
	for i, p := range peaks {
		if p == pos {
			return i
		}
	}
	return -1
}

// PeakHashes returns the stored values of the peaks for a range of the given
// size, left to right.
func PeakHashes(store NodeGetter, size uint64) ([][]byte, error) {
	if !IsValidSize(size) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	peaks := Peaks(size)
	hashes := make([][]byte, 0, len(peaks))
	for _, pos := range peaks {
		value, err := store.Get(pos)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, value)
	}
	return hashes, nil
}

package mmr

import (
	"bytes"
	"fmt"
)

// BagPeaks folds the peak hashes, ordered left to right, into one value.
//
// The fold starts with the two right most (newest) peaks and works leftwards,
// so for peaks [a, b, c, d] the result is
//
//	H(a, H(b, H(c, d)))
//
// No peaks bag to the zero value, and a single peak bags to itself.
func BagPeaks(hasher Hasher, peaks [][]byte) []byte {
	switch len(peaks) {
	case 0:
		return make([]byte, hasher.Size())
	case 1:
		return bytes.Clone(peaks[0])
	}

	acc := hasher.HashPair(peaks[len(peaks)-2], peaks[len(peaks)-1])
	for i := len(peaks) - 3; i >= 0; i-- {
		acc = hasher.HashPair(peaks[i], acc)
	}
	return acc
}

// Root computes the commitment for a range of the given size from its peak
// hashes:
//
//	H(CountBytes(size), BagPeaks(peaks))
//
// Committing to the size binds the root to the exact shape of the range. The
// empty range has the zero value as its root.
func Root(hasher Hasher, size uint64, peaks [][]byte) []byte {
	if size == 0 {
		return make([]byte, hasher.Size())
	}
	return hasher.HashPair(CountBytes(hasher.Size(), size), BagPeaks(hasher, peaks))
}

// GetRoot reads the peaks for size from the store and returns the root.
func GetRoot(store NodeGetter, hasher Hasher, size uint64) ([]byte, error) {
	peaks, err := PeakHashes(store, size)
	if err != nil {
		return nil, fmt.Errorf("%w: reading peaks for root", err)
	}
	return Root(hasher, size, peaks), nil
}

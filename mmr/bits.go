package mmr

import "math/bits"

// MaxHeight bounds every walk over the position space. No node in a range
// addressed by uint64 positions can be higher than this.
const MaxHeight = 64

func BitLength64(num uint64) uint64 { return uint64(bits.Len64(num)) }

// AllOnes is true when num is 2^k - 1 for some k. For a one based position
// this identifies the root of a perfect tree that starts at position 1.
func AllOnes(num uint64) bool {
	return (1<<bits.OnesCount64(num) - 1) == num
}

// ElementsCount returns the number of nodes in a range holding the given
// number of leaves. Each leaf adds one node plus one per merge, and the
// merges after n appends number n - popcount(n).
func ElementsCount(leavesCount uint64) uint64 {
	return 2*leavesCount - uint64(bits.OnesCount64(leavesCount))
}

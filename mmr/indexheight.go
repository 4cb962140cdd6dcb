package mmr

// References:
// * https://github.com/proofchains/python-proofmarshal/blob/master/proofmarshal/mmr.py#L18
// * https://github.com/mimblewimble/grin/blob/0ff6763ee64e5a14e70ddd4642b99789a1648a32/core/src/core/pmmr.rs#L606

// All positions in this package are one based. Position 1 is the first leaf.

// JumpLeftPerfect subtracts from pos the size of the largest perfect tree
// that could come before it. Repeating this lands on the left most node of
// the same height, which is always all ones in binary. In the tree below,
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
//
// 13 jumps by 7 to 6, then 6 jumps by 3 to 3, which is 0b11 and so
// height 1.
func JumpLeftPerfect(pos uint64) uint64 {
	mostSignificantBit := uint64(1) << (BitLength64(pos) - 1)
	return pos - (mostSignificantBit - 1)
}

// PosHeight returns the height of the node at pos. Leaves are height 0.
//
// Every jump strictly reduces the bit length of pos, so the loop runs at most
// MaxHeight times.
func PosHeight(pos uint64) uint64 {
	if pos == 0 {
		return 0
	}
	for i := 0; i < MaxHeight && !AllOnes(pos); i++ {
		pos = JumpLeftPerfect(pos)
	}
	return BitLength64(pos) - 1
}

// IsRightChild is true if the node at pos is the right child of its parent.
// The parent of a right child is always the very next position, and it is
// higher.
func IsRightChild(pos uint64) bool {
	return PosHeight(pos+1) > PosHeight(pos)
}

// SiblingOffset returns the distance between two siblings at the given
// height. A left child finds its sibling at pos + offset, a right child at
// pos - offset.
func SiblingOffset(height uint64) uint64 {
	// a perfect tree of height h has (2 << h) - 1 nodes, and the right
	// sibling is the root of the perfect tree that immediately follows.
	return (2 << height) - 1
}

// ParentOffset returns the distance from a left child at the given height to
// its parent. The parent is stored immediately after the right sibling.
func ParentOffset(height uint64) uint64 {
	return 2 << height
}

// JumpRightSibling moves from pos to the next position at the same height
func JumpRightSibling(pos uint64) uint64 {
	return pos + SiblingOffset(PosHeight(pos))
}

// LeftChild returns the position of the left child of the parent at pos, and
// false if pos is a leaf. With the tree drawn at JumpLeftPerfect, 18 has
// height 1 so its left child is 18 - 2 = 16, and 14 has height 2 giving
// 14 - 4 = 10.
func LeftChild(pos uint64) (uint64, bool) {
	height := PosHeight(pos)
	if height == 0 {
		return 0, false
	}
	return pos - (1 << height), true
}

// RightChild returns the position of the right child of the parent at pos.
func RightChild(pos uint64) (uint64, bool) {
	if PosHeight(pos) == 0 {
		return 0, false
	}
	return pos - 1, true
}

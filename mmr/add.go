package mmr

import "fmt"

// AddLeaf adds a single leaf to the range and back fills any interior nodes
// 'above and to the left'. The leaf value is stored as is, it must already be
// a hash of the hasher's width.
//
// Returns the position assigned to the leaf and the size of the range after
// the addition.
func AddLeaf(store NodeAppender, hasher Hasher, value []byte) (uint64, uint64, error) {

	if len(value) != hasher.Size() {
		return 0, 0, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidValue, len(value), hasher.Size())
	}

	leafPos, err := store.Append(value)
	if err != nil {
		return 0, 0, err
	}

	// For any node we add, if the next position would be higher in the tree,
	// then the node we just added completes a pair and we get to append their
	// parent. Each back filled parent is always at the 'next' position, so
	// this repeats until the next position is not higher.
	//
	//   3  <- adding '2' lets us append '3' as well
	//  / \
	// 1   2
	//
	// A merge always leaves at least two peaks to combine, and each one
	// climbs a level, so there can be no more than MaxHeight of them.
	size := leafPos
	for height := uint64(0); height < MaxHeight && PosHeight(size+1) > height; height++ {

		parent := size + 1
		left, err := store.Get(parent - ParentOffset(height))
		if err != nil {
			return 0, 0, err
		}
		right, err := store.Get(parent - 1)
		if err != nil {
			return 0, 0, err
		}

		if size, err = store.Append(hasher.HashPair(left, right)); err != nil {
			return 0, 0, err
		}
	}
	return leafPos, size, nil
}

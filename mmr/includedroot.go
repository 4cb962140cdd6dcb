package mmr

// IncludedRoot climbs from the node at pos, combining nodeHash with each
// sibling in turn, and returns the hash of the node the climb ends at along
// with its position. When proof is the path produced by InclusionPath the
// result is the peak that commits pos.
//
// The combination order is derived from the positions alone, never from the
// proof. Climbing from a left child gives H(hash, sibling) and from a right
// child gives H(sibling, hash).
func IncludedRoot(hasher Hasher, pos uint64, nodeHash []byte, proof [][]byte) ([]byte, uint64) {

	root := nodeHash
	height := PosHeight(pos)

	for _, sibling := range proof {

		if PosHeight(pos+1) > height {
			// right child, the sibling is to the left
			root = hasher.HashPair(sibling, root)
		} else {
			root = hasher.HashPair(root, sibling)
		}
		_, pos = climb(pos, height)
		height++
	}

	return root, pos
}

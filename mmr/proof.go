package mmr

import (
	"fmt"
)

// Proof shows that ElementHash is stored at ElementIndex in a range of
// ElementsCount nodes.
//
// Siblings are ordered from the element up to the peak that commits it, one
// per level climbed. Peaks is the complete peak list of the range at the time
// the proof was made, left to right.
type Proof struct {
	ElementIndex  uint64   `cbor:"1,keyasint" json:"elementIndex"`
	ElementHash   []byte   `cbor:"2,keyasint" json:"elementHash"`
	Siblings      [][]byte `cbor:"3,keyasint" json:"siblings"`
	Peaks         [][]byte `cbor:"4,keyasint" json:"peaks"`
	ElementsCount uint64   `cbor:"5,keyasint" json:"elementsCount"`
}

// climb steps from pos, at the given height, to its parent. It returns the
// position of the sibling and of the parent.
func climb(pos, height uint64) (uint64, uint64) {
	// If the next position is higher, it is the parent and pos is the right
	// child.
	if PosHeight(pos+1) > height {
		return pos - SiblingOffset(height), pos + 1
	}
	// The parent of a left child is stored immediately after its right
	// sibling.
	return pos + SiblingOffset(height), pos + ParentOffset(height)
}

// InclusionPath returns the positions of the sibling nodes needed to prove
// pos in a range of the given size, and the position of the peak the path
// arrives at.
//
// For pos=1 in a range of size 4 the path is [2] and the peak is 3.
//
//	1     3
//	     / \
//	0   1   2  4
//
// Interior nodes may be proven too, their path just starts higher.
func InclusionPath(size uint64, pos uint64) ([]uint64, uint64, error) {

	if !IsValidSize(size) {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if pos == 0 || pos > size {
		return nil, 0, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidIndex, pos, size)
	}

	peaks := Peaks(size)

	var path []uint64
	height := PosHeight(pos)
	for ; height < MaxHeight; height++ {
		if PeakIndex(peaks, pos) >= 0 {
			return path, pos, nil
		}
		var sibling uint64
		sibling, pos = climb(pos, height)
		path = append(path, sibling)
	}
	return nil, 0, fmt.Errorf("%w: no peak within %d levels", ErrProofLenTooLarge, MaxHeight)
}

// InclusionProof builds the proof for the node at pos in a range of the given
// size.
func InclusionProof(store NodeGetter, size uint64, pos uint64) (Proof, error) {

	path, _, err := InclusionPath(size, pos)
	if err != nil {
		return Proof{}, err
	}

	elementHash, err := store.Get(pos)
	if err != nil {
		return Proof{}, err
	}

	proof := Proof{
		ElementIndex:  pos,
		ElementHash:   elementHash,
		Siblings:      make([][]byte, 0, len(path)),
		ElementsCount: size,
	}

	for _, sibling := range path {
		value, err := store.Get(sibling)
		if err != nil {
			return Proof{}, err
		}
		proof.Siblings = append(proof.Siblings, value)
	}

	if proof.Peaks, err = PeakHashes(store, size); err != nil {
		return Proof{}, err
	}
	return proof, nil
}

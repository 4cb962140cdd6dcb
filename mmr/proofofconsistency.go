package mmr

import "fmt"

// ConsistencyProof describes a proof that the range defined by size a is
// perfectly contained in the range described by size b. The proof should be
// verified against a previously published root for size a and the root of
// the proposed range of size b.
//
// A reference introducing the concept of consistency proofs in merkle trees:
// https://pangea.cloud/docs/audit/merkle-trees#outline-consistency-proof
type ConsistencyProof struct {
	SizeA uint64 `cbor:"1,keyasint" json:"sizeA"`
	SizeB uint64 `cbor:"2,keyasint" json:"sizeB"`
	// Paths holds one inclusion path in range b for each peak of range a
	Paths [][][]byte `cbor:"3,keyasint" json:"paths"`
	// PeaksB are the peak hashes of range b
	PeaksB [][]byte `cbor:"4,keyasint" json:"peaksB"`
}

// NewConsistencyProof creates a proof that range b appends to range a. It
// works by generating inclusion proofs for each of the peaks of a.
//
// Every node hash commits to its children, and the root commits to the size,
// so a peak of a that is included in b at the same position shows that b
// holds an exact copy of everything a committed.
func NewConsistencyProof(store NodeGetter, sizeA, sizeB uint64) (ConsistencyProof, error) {

	if sizeA == 0 || sizeA > sizeB {
		return ConsistencyProof{}, fmt.Errorf("%w: size a %d, size b %d", ErrInvalidSize, sizeA, sizeB)
	}
	if !IsValidSize(sizeA) || !IsValidSize(sizeB) {
		return ConsistencyProof{}, fmt.Errorf("%w: size a %d, size b %d", ErrInvalidSize, sizeA, sizeB)
	}

	proof := ConsistencyProof{
		SizeA: sizeA,
		SizeB: sizeB,
	}

	for _, peakA := range Peaks(sizeA) {
		path, _, err := InclusionPath(sizeB, peakA)
		if err != nil {
			return ConsistencyProof{}, err
		}
		values := make([][]byte, 0, len(path))
		for _, pos := range path {
			value, err := store.Get(pos)
			if err != nil {
				return ConsistencyProof{}, err
			}
			values = append(values, value)
		}
		proof.Paths = append(proof.Paths, values)
	}

	var err error
	if proof.PeaksB, err = PeakHashes(store, sizeB); err != nil {
		return ConsistencyProof{}, err
	}
	return proof, nil
}

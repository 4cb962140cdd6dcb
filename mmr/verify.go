package mmr

import (
	"bytes"
	"fmt"
)

// VerifyProof returns true if leafValue, stored at proof.ElementIndex,
// reproduces expectedRoot for a range of proof.ElementsCount nodes.
//
// The function is pure and needs nothing from the store that produced the
// proof. An error is returned only when the proof is structurally unusable:
// an index outside the range, an impossible size, or sibling and peak lists
// whose lengths do not match the shape of the range. A proof that is well
// formed but does not reproduce the root is simply false.
//
// Verification climbs from the leaf to the peak that commits it. That peak
// must be the entry in proof.Peaks the climb lands on. The peaks are then
// bagged and combined with the count to recompute the root.
func VerifyProof(hasher Hasher, leafValue []byte, proof Proof, expectedRoot []byte) (bool, error) {

	path, peakPos, err := InclusionPath(proof.ElementsCount, proof.ElementIndex)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedProof, err)
	}
	if len(proof.Siblings) != len(path) {
		return false, fmt.Errorf(
			"%w: %d siblings, position %d needs %d", ErrMalformedProof,
			len(proof.Siblings), proof.ElementIndex, len(path))
	}

	peaks := Peaks(proof.ElementsCount)
	if len(proof.Peaks) != len(peaks) {
		return false, fmt.Errorf(
			"%w: %d peaks, size %d has %d", ErrMalformedProof,
			len(proof.Peaks), proof.ElementsCount, len(peaks))
	}

	if len(proof.ElementHash) != 0 && !bytes.Equal(proof.ElementHash, leafValue) {
		return false, nil
	}

	peak, _ := IncludedRoot(hasher, proof.ElementIndex, leafValue, proof.Siblings)

	// The climbed peak must equal the slot it lands on. Bagging proof.Peaks
	// is then the same as bagging with the climbed value substituted.
	if !bytes.Equal(peak, proof.Peaks[PeakIndex(peaks, peakPos)]) {
		return false, nil
	}

	return bytes.Equal(Root(hasher, proof.ElementsCount, proof.Peaks), expectedRoot), nil
}

// VerifyInclusionPath returns true if nodeHash, at pos, climbs through path
// to peak.
func VerifyInclusionPath(hasher Hasher, pos uint64, nodeHash []byte, path [][]byte, peak []byte) bool {
	root, _ := IncludedRoot(hasher, pos, nodeHash, path)
	return bytes.Equal(root, peak)
}

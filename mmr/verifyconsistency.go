package mmr

import (
	"bytes"
	"fmt"
)

// VerifyConsistency returns true if the update from range a to range b is
// append only. This means that the new range contains an exact copy of the
// previous one, with any new nodes appended after.
//
// peaksA are the peak hashes committed by rootA, typically recorded alongside
// a previously published root. Each of them must climb, through its path in
// the proof, to the peak of b that the climb lands on.
//
// Structural problems with the proof are errors, a proof that fails to
// reproduce either root is false.
func VerifyConsistency(
	hasher Hasher, proof ConsistencyProof, peaksA [][]byte, rootA []byte, rootB []byte) (bool, error) {

	if proof.SizeA == 0 || proof.SizeA > proof.SizeB ||
		!IsValidSize(proof.SizeA) || !IsValidSize(proof.SizeB) {
		return false, fmt.Errorf("%w: size a %d, size b %d", ErrMalformedProof, proof.SizeA, proof.SizeB)
	}

	peakPositionsA := Peaks(proof.SizeA)
	peakPositionsB := Peaks(proof.SizeB)
	if len(peaksA) != len(peakPositionsA) || len(proof.Paths) != len(peakPositionsA) {
		return false, fmt.Errorf(
			"%w: a proof for each peak of a is required", ErrMalformedProof)
	}
	if len(proof.PeaksB) != len(peakPositionsB) {
		return false, fmt.Errorf(
			"%w: %d peaks, size %d has %d", ErrMalformedProof,
			len(proof.PeaksB), proof.SizeB, len(peakPositionsB))
	}

	if !bytes.Equal(Root(hasher, proof.SizeA, peaksA), rootA) {
		return false, nil
	}
	if !bytes.Equal(Root(hasher, proof.SizeB, proof.PeaksB), rootB) {
		return false, nil
	}

	for i, pos := range peakPositionsA {
		want, _, err := InclusionPath(proof.SizeB, pos)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrMalformedProof, err)
		}
		if len(want) != len(proof.Paths[i]) {
			return false, fmt.Errorf(
				"%w: path %d has %d entries, want %d", ErrMalformedProof, i, len(proof.Paths[i]), len(want))
		}

		peak, landed := IncludedRoot(hasher, pos, peaksA[i], proof.Paths[i])
		iPeakB := PeakIndex(peakPositionsB, landed)
		if iPeakB < 0 || !bytes.Equal(peak, proof.PeaksB[iPeakB]) {
			return false, nil
		}
	}
	return true, nil
}

// CheckConsistency is used to check that a store holding range b is
// consistent with respect to some previously known root for size a. It
// returns the root of b.
func CheckConsistency(
	store NodeGetter, hasher Hasher, proof ConsistencyProof, rootA []byte) (bool, []byte, error) {

	peaksA, err := PeakHashes(store, proof.SizeA)
	if err != nil {
		return false, nil, err
	}

	rootB, err := GetRoot(store, hasher, proof.SizeB)
	if err != nil {
		return false, nil, err
	}

	ok, err := VerifyConsistency(hasher, proof, peaksA, rootA, rootB)
	if err != nil {
		return false, nil, err
	}
	return ok, rootB, nil
}

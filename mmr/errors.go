package mmr

import "errors"

var (
	ErrNotFound         = errors.New("node not found")
	ErrInvalidIndex     = errors.New("position is outside the range")
	ErrInvalidSize      = errors.New("not a valid range size")
	ErrInvalidValue     = errors.New("value width does not match the hasher")
	ErrMalformedProof   = errors.New("proof is malformed")
	ErrProofLenTooLarge = errors.New("proof length value is too large")

	ErrConsistencyCheck = errors.New("consistency check failed")
)

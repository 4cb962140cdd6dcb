package mmr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsistencyProof(t *testing.T) {
	db := NewCanonicalTestDB(t)

	var sizes []uint64
	for size := uint64(1); size <= 39; size++ {
		if IsValidSize(size) {
			sizes = append(sizes, size)
		}
	}

	for _, sizeA := range sizes {
		for _, sizeB := range sizes {
			if sizeB < sizeA {
				continue
			}
			t.Run(fmt.Sprintf("%d to %d", sizeA, sizeB), func(t *testing.T) {
				rootA, err := GetRoot(db, sha256Hasher{}, sizeA)
				require.NoError(t, err)

				proof, err := NewConsistencyProof(db, sizeA, sizeB)
				require.NoError(t, err)

				ok, rootB, err := CheckConsistency(db, sha256Hasher{}, proof, rootA)
				require.NoError(t, err)
				assert.True(t, ok)

				want, err := GetRoot(db, sha256Hasher{}, sizeB)
				require.NoError(t, err)
				assert.Equal(t, want, rootB)
			})
		}
	}
}

func TestVerifyConsistencyRejects(t *testing.T) {
	db := NewCanonicalTestDB(t)
	h := sha256Hasher{}

	rootA, err := GetRoot(db, h, 11)
	require.NoError(t, err)
	rootB, err := GetRoot(db, h, 26)
	require.NoError(t, err)
	peaksA, err := PeakHashes(db, 11)
	require.NoError(t, err)

	proof, err := NewConsistencyProof(db, 11, 26)
	require.NoError(t, err)

	ok, err := VerifyConsistency(h, proof, peaksA, rootA, rootB)
	require.NoError(t, err)
	assert.True(t, ok)

	// a different history for a
	other := append([][]byte{}, peaksA...)
	other[0] = hashNum(1000)
	ok, err = VerifyConsistency(h, proof, other, Root(h, 11, other), rootB)
	require.NoError(t, err)
	assert.False(t, ok)

	// the wrong root for b
	ok, err = VerifyConsistency(h, proof, peaksA, rootA, rootA)
	require.NoError(t, err)
	assert.False(t, ok)

	// a path for each peak is required
	short := proof
	short.Paths = proof.Paths[1:]
	_, err = VerifyConsistency(h, short, peaksA, rootA, rootB)
	assert.ErrorIs(t, err, ErrMalformedProof)

	_, err = NewConsistencyProof(db, 26, 11)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

package checkpoint

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	"github.com/forestrie/go-mountainrange/hashing"
	"github.com/forestrie/go-mountainrange/mmr"
	"github.com/forestrie/go-mountainrange/nodestore"
	"github.com/stretchr/testify/require"
)

func testGenerateECKey(t *testing.T, curve elliptic.Curve) ecdsa.PrivateKey {
	privateKey, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	return *privateKey
}

func testCodec(t *testing.T) dtcbor.CBORCodec {
	codec, err := NewCodec()
	require.NoError(t, err)
	return codec
}

func testLeaf(n int) []byte {
	sum := sha256.Sum256([]byte{byte(n >> 8), byte(n)})
	return sum[:]
}

// testRange builds a range of leaves and returns the commitment for every
// size it passed through.
func testRange(t *testing.T, logID string, leaves int) (*nodestore.Memory, []MMRState) {
	hasher := hashing.MustNew(hashing.SHA256)
	nodes := nodestore.NewMemory()

	var states []MMRState
	for i := 0; i < leaves; i++ {
		_, size, err := mmr.AddLeaf(nodes, hasher, testLeaf(i))
		require.NoError(t, err)
		peaks, err := mmr.PeakHashes(nodes, size)
		require.NoError(t, err)
		states = append(states, MMRState{
			LogID:       logID,
			MMRSize:     size,
			Root:        mmr.Root(hasher, size, peaks),
			Peaks:       peaks,
			IDTimestamp: uint64(i + 1),
		})
	}
	return nodes, states
}

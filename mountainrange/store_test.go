package mountainrange

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-mountainrange/checkpoint"
	"github.com/forestrie/go-mountainrange/hashing"
	"github.com/forestrie/go-mountainrange/mmr"
	"github.com/forestrie/go-mountainrange/nodestore"
	fuzz "github.com/google/gofuzz"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) logger.Logger {
	logger.New("TEST")
	t.Cleanup(logger.OnExit)
	return logger.Sugar.WithServiceName("mountainrange")
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	s, err := New(testLogger(t), nodestore.NewMemory(nodestore.WithWidth(sha256.Size)), hashing.MustNew(hashing.SHA256), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func leaf(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

func appendAll(t *testing.T, s *Store, values ...[]byte) []AppendResult {
	var results []AppendResult
	for _, v := range values {
		r, err := s.Append(context.Background(), v)
		require.NoError(t, err)
		results = append(results, r)
	}
	return results
}

func TestStoreAppendThreeLeaves(t *testing.T) {
	s := newTestStore(t)
	hasher := s.Hasher()
	a, b, c := leaf("A"), leaf("B"), leaf("C")

	// empty range
	assert.Equal(t, make([]byte, 32), s.Root())
	assert.Empty(t, s.Peaks())

	results := appendAll(t, s, a, b, c)

	tests := []struct {
		name     string
		result   AppendResult
		leaves   uint64
		elements uint64
		index    uint64
	}{
		{"A", results[0], 1, 1, 1},
		{"B", results[1], 2, 3, 2},
		{"C", results[2], 3, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.leaves, tt.result.LeavesCount)
			assert.Equal(t, tt.elements, tt.result.ElementsCount)
			assert.Equal(t, tt.index, tt.result.ElementIndex)
		})
	}

	ab := hasher.HashPair(a, b)
	got, err := s.Get(3)
	require.NoError(t, err)
	assert.Equal(t, ab, got)

	assert.Equal(t, [][]byte{ab, c}, s.Peaks())

	want := hasher.HashPair(mmr.CountBytes(32, 4), hasher.HashPair(ab, c))
	assert.Equal(t, want, s.Root())
	assert.Equal(t, want, results[2].Root)

	// proof for B: sibling A, then B's peak is the first of two
	proof, err := s.GetProof(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), proof.ElementIndex)
	assert.Equal(t, b, proof.ElementHash)
	assert.Equal(t, [][]byte{a}, proof.Siblings)
	assert.Equal(t, [][]byte{ab, c}, proof.Peaks)
	assert.Equal(t, uint64(4), proof.ElementsCount)

	ok, err := s.VerifyProof(b, proof)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.VerifyProof(a, proof)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreProofEveryPosition(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 21; i++ {
		appendAll(t, s, leaf(string(rune('a'+i))))
	}
	state := s.State()
	require.Equal(t, uint64(21), state.LeavesCount)
	require.Equal(t, mmr.ElementsCount(21), state.ElementsCount)

	for pos := uint64(1); pos <= state.ElementsCount; pos++ {
		value, err := s.Get(pos)
		require.NoError(t, err)
		proof, err := s.GetProof(pos)
		require.NoError(t, err)

		ok, err := s.VerifyProof(value, proof)
		require.NoError(t, err)
		assert.True(t, ok, "position %d", pos)

		ok, err = mmr.VerifyProof(s.Hasher(), value, proof, state.Root)
		require.NoError(t, err)
		assert.True(t, ok, "position %d", pos)
	}
}

func TestStoreGetProofInvalidIndex(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetProof(1)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	appendAll(t, s, leaf("A"), leaf("B"), leaf("C"))
	count := s.State().ElementsCount

	tests := []struct {
		name string
		pos  uint64
	}{
		{"zero", 0},
		{"past the end", count + 1},
		{"far past the end", 1 << 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.GetProof(tt.pos)
			assert.ErrorIs(t, err, ErrInvalidIndex)
			_, err = s.Get(tt.pos)
			assert.ErrorIs(t, err, ErrInvalidIndex)
		})
	}
}

func TestStoreInvalidValue(t *testing.T) {
	s := newTestStore(t)
	for _, v := range [][]byte{nil, {1, 2, 3}, make([]byte, 33)} {
		_, err := s.Append(context.Background(), v)
		assert.ErrorIs(t, err, ErrInvalidValue)
	}
	assert.Equal(t, uint64(0), s.State().ElementsCount)
}

func TestStoreClearThenAppendMatchesFresh(t *testing.T) {
	values := [][]byte{leaf("x"), leaf("y"), leaf("z"), leaf("w"), leaf("v")}

	s := newTestStore(t)
	appendAll(t, s, leaf("old 1"), leaf("old 2"), leaf("old 3"))
	require.NoError(t, s.Clear(context.Background()))

	state := s.State()
	assert.Equal(t, uint64(0), state.LeavesCount)
	assert.Equal(t, uint64(0), state.ElementsCount)
	assert.Equal(t, make([]byte, 32), state.Root)
	assert.Empty(t, s.Peaks())

	appendAll(t, s, values...)

	fresh := newTestStore(t)
	appendAll(t, fresh, values...)

	assert.Equal(t, fresh.State(), s.State())
}

func TestStoreDeterministic(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(2, 64)

	for i := 0; i < 20; i++ {
		var raw [][32]byte
		f.Fuzz(&raw)

		values := make([][]byte, len(raw))
		for j := range raw {
			values[j] = raw[j][:]
		}

		one, two := newTestStore(t), newTestStore(t)
		appendAll(t, one, values...)
		appendAll(t, two, values...)
		assert.Equal(t, one.Root(), two.Root())

		if bytes.Equal(values[0], values[1]) {
			continue
		}
		// swapping any two distinct leaves changes the root
		swapped := newTestStore(t)
		values[0], values[1] = values[1], values[0]
		appendAll(t, swapped, values...)
		assert.NotEqual(t, one.Root(), swapped.Root())
	}
}

func TestStoreProofsDoNotAliasNodes(t *testing.T) {
	s := newTestStore(t)
	a, b, c := leaf("A"), leaf("B"), leaf("C")
	appendAll(t, s, a, b, c)
	root := s.Root()

	p1, err := s.GetProof(1)
	require.NoError(t, err)
	p1.Siblings[0][0] ^= 0xff
	p1.Peaks[0][0] ^= 0xff

	state := s.State()
	state.Root[0] ^= 0xff
	state.Peaks[1][0] ^= 0xff
	s.Peaks()[0][0] ^= 0xff

	got, err := s.Get(2)
	require.NoError(t, err)
	got[0] ^= 0xff

	assert.Equal(t, root, s.Root())
	stored, err := s.Get(2)
	require.NoError(t, err)
	assert.Equal(t, b, stored)

	p2, err := s.GetProof(2)
	require.NoError(t, err)
	ok, err := s.VerifyProof(b, p2)
	require.NoError(t, err)
	assert.True(t, ok)

	// later merges still build on the original nodes
	r := appendAll(t, s, leaf("D"))
	fresh := newTestStore(t)
	want := appendAll(t, fresh, a, b, c, leaf("D"))
	assert.Equal(t, want[3].Root, r[0].Root)
}

func TestStoreFieldHashRejectsWrappedValue(t *testing.T) {
	hasher := hashing.MustNew(hashing.MiMCBN254)
	s, err := New(testLogger(t), nodestore.NewMemory(nodestore.WithWidth(32)), hasher)
	require.NoError(t, err)
	defer s.Close()

	a := make([]byte, 32)
	a[31] = 7
	b := make([]byte, 32)
	b[31] = 9
	appendAll(t, s, a, b)

	proof, err := s.GetProof(1)
	require.NoError(t, err)
	ok, err := s.VerifyProof(a, proof)
	require.NoError(t, err)
	assert.True(t, ok)

	// a plus the field modulus is a different 32 byte value
	wrapped := new(big.Int).Add(big.NewInt(7), fr.Modulus()).FillBytes(make([]byte, 32))
	proof.ElementHash = nil
	ok, err = mmr.VerifyProof(hasher, wrapped, proof, s.Root())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreStaleProof(t *testing.T) {
	s := newTestStore(t)
	appendAll(t, s, leaf("A"), leaf("B"))

	proof, err := s.GetProof(1)
	require.NoError(t, err)

	appendAll(t, s, leaf("C"))

	_, err = s.VerifyProof(leaf("A"), proof)
	assert.ErrorIs(t, err, ErrStaleProof)
}

func TestStoreHistoricalProofWithLedger(t *testing.T) {
	hasher := hashing.MustNew(hashing.SHA256)
	logID := uuid.New()
	ledger := checkpoint.NewLedger(hasher, logID.String())

	s := newTestStore(t, WithLogID(logID), WithPublisher(ledger))
	appendAll(t, s, leaf("A"), leaf("B"))

	proof, err := s.GetProof(2)
	require.NoError(t, err)

	appendAll(t, s, leaf("C"), leaf("D"), leaf("E"))

	ok, err := ledger.VerifyProof(leaf("B"), proof)
	require.NoError(t, err)
	assert.True(t, ok)

	// the ledger can check the range only grew
	cp, err := s.GetConsistencyProof(proof.ElementsCount)
	require.NoError(t, err)
	ok, err = ledger.VerifyConsistency(cp)
	require.NoError(t, err)
	assert.True(t, ok)
}

type recordingPublisher struct {
	mu     sync.Mutex
	states []checkpoint.MMRState
	err    error
}

func (p *recordingPublisher) SetCommitment(_ context.Context, state checkpoint.MMRState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, state)
	return p.err
}

func TestStorePublishes(t *testing.T) {
	logID := uuid.New()
	p := &recordingPublisher{}
	s := newTestStore(t, WithLogID(logID), WithPublisher(p))

	results := appendAll(t, s, leaf("A"), leaf("B"))
	require.NoError(t, s.Clear(context.Background()))

	require.Len(t, p.states, 3)
	for i, r := range results {
		assert.Equal(t, logID.String(), p.states[i].LogID)
		assert.Equal(t, r.ElementsCount, p.states[i].MMRSize)
		assert.Equal(t, r.Root, p.states[i].Root)
		assert.NotZero(t, p.states[i].IDTimestamp)
		assert.Equal(t, uint32(1), p.states[i].CommitmentEpoch)
	}
	assert.Equal(t, [][]byte{leaf("A")}, p.states[0].Peaks)
	assert.Len(t, p.states[1].Peaks, 1)
	assert.Empty(t, p.states[2].Peaks)
	assert.Equal(t, uint64(0), p.states[2].MMRSize)

	// a failing publisher does not fail the append
	p.err = errors.New("unavailable")
	_, err := s.Append(context.Background(), leaf("C"))
	assert.NoError(t, err)
}

func TestStoreJournal(t *testing.T) {
	s := newTestStore(t)
	appendAll(t, s, leaf("A"), leaf("B"))
	require.NoError(t, s.Clear(context.Background()))
	appendAll(t, s, leaf("C"))

	entries := s.Journal().Since(0)
	require.Len(t, entries, 4)

	ops := []Op{OpAppend, OpAppend, OpClear, OpAppend}
	counts := []uint64{1, 3, 0, 1}
	for i, e := range entries {
		assert.Equal(t, ops[i], e.Op)
		assert.Equal(t, counts[i], e.ElementsCount)
		if i > 0 {
			assert.Greater(t, e.ID, entries[i-1].ID)
		}
	}
	assert.Equal(t, s.Root(), entries[3].Root)

	assert.Equal(t, entries[2:], s.Journal().Since(entries[1].ID))
}

func TestStoreClosed(t *testing.T) {
	s := newTestStore(t)
	appendAll(t, s, leaf("A"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Append(context.Background(), leaf("B"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Clear(context.Background()), ErrClosed)
}

func TestStoreAppendRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		s, err := New(testLogger(t), nodestore.NewMemory(), hashing.MustNew(hashing.SHA256), WithQueueDepth(4))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Append(context.Background(), leaf("A"))
				if err != nil {
					assert.ErrorIs(t, err, ErrClosed)
				}
			}()
		}
		require.NoError(t, s.Close())

		// every Append returns, none is left waiting on a stopped writer
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: Append blocked after Close", round)
		}
	}
}

func TestStoreAppendCanceled(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// either the writer took it or the context won, but nothing is half done
	_, err := s.Append(ctx, leaf("A"))
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.True(t, mmr.IsValidSize(s.State().ElementsCount))
}

func TestStoreRecoversIncompleteAppend(t *testing.T) {
	log := testLogger(t)
	hasher := hashing.MustNew(hashing.SHA256)
	nodes := nodestore.NewMemory(nodestore.WithWidth(32))

	for _, v := range [][]byte{leaf("A"), leaf("B"), leaf("C")} {
		_, _, err := mmr.AddLeaf(nodes, hasher, v)
		require.NoError(t, err)
	}
	want, err := mmr.GetRoot(nodes, hasher, 4)
	require.NoError(t, err)

	// a leaf written without the parent that should follow it
	_, err = nodes.Append(leaf("D"))
	require.NoError(t, err)
	require.Equal(t, uint64(5), nodes.Size())

	s, err := New(log, nodes, hasher)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, uint64(4), nodes.Size())
	assert.Equal(t, uint64(3), s.State().LeavesCount)
	assert.Equal(t, want, s.Root())

	r := appendAll(t, s, leaf("D"))
	assert.Equal(t, uint64(7), r[0].ElementsCount)
}

// failingNodes fails appends once armed, after writing some nodes.
type failingNodes struct {
	nodestore.Store
	failAt uint64
}

var errNodeWrite = errors.New("node write failed")

func (n *failingNodes) Append(value []byte) (uint64, error) {
	if n.failAt != 0 && n.Store.Size()+1 >= n.failAt {
		return 0, errNodeWrite
	}
	return n.Store.Append(value)
}

func TestStoreRollsBackFailedAppend(t *testing.T) {
	nodes := &failingNodes{Store: nodestore.NewMemory()}
	s, err := New(testLogger(t), nodes, hashing.MustNew(hashing.SHA256))
	require.NoError(t, err)
	defer s.Close()

	appendAll(t, s, leaf("A"))
	before := s.State()

	// the leaf at 2 is written but its parent at 3 fails
	nodes.failAt = 3
	_, err = s.Append(context.Background(), leaf("B"))
	assert.ErrorIs(t, err, errNodeWrite)

	assert.Equal(t, before, s.State())
	assert.Equal(t, uint64(1), nodes.Size())

	nodes.failAt = 0
	r := appendAll(t, s, leaf("B"))
	assert.Equal(t, uint64(3), r[0].ElementsCount)
}

func TestStoreConcurrentReaders(t *testing.T) {
	hasher := hashing.MustNew(hashing.SHA256)
	logID := uuid.New()
	ledger := checkpoint.NewLedger(hasher, logID.String())
	s := newTestStore(t, WithLogID(logID), WithPublisher(ledger))

	appendAll(t, s, leaf("first"))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				state := s.State()
				if !assert.True(t, mmr.IsValidSize(state.ElementsCount)) {
					return
				}
				proof, err := s.GetProof(1)
				if !assert.NoError(t, err) {
					return
				}
				ok, err := ledger.VerifyProof(leaf("first"), proof)
				if errors.Is(err, checkpoint.ErrNoCommitment) {
					// the proof raced ahead of the publisher
					continue
				}
				assert.NoError(t, err)
				assert.True(t, ok)
			}
		}()
	}

	for i := 0; i < 200; i++ {
		_, err := s.Append(context.Background(), leaf(string(rune(i))))
		require.NoError(t, err)
	}
	cancel()
	wg.Wait()

	assert.Equal(t, uint64(201), s.State().LeavesCount)
}

func TestStoreConcurrentWriters(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := s.Append(context.Background(), leaf(string(rune(w*100+i))))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	state := s.State()
	assert.Equal(t, uint64(200), state.LeavesCount)
	assert.Equal(t, mmr.ElementsCount(200), state.ElementsCount)
}

func TestStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestStore(t, WithRegisterer(reg))

	appendAll(t, s, leaf("A"), leaf("B"), leaf("C"))
	require.NoError(t, s.Clear(context.Background()))
	appendAll(t, s, leaf("D"))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 4.0, values["mountainrange_appends_total"])
	assert.Equal(t, 1.0, values["mountainrange_clears_total"])
	assert.Equal(t, 1.0, values["mountainrange_leaves"])
	assert.Equal(t, 1.0, values["mountainrange_elements"])
}

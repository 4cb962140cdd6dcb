package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/algorand/go-deadlock"
	"github.com/forestrie/go-mountainrange/mmr"
)

var (
	ErrNoCommitment    = errors.New("no commitment has been published for that size")
	ErrConflictingRoot = errors.New("a different root was already published for that size")
	ErrLogMismatch     = errors.New("commitment is for a different log")
)

// Ledger archives one commitment for each size a range has been published
// at. It is a trust anchor for verifying proofs that were made before the
// range grew.
//
// A commitment with MMRSize zero starts a new history, the range was
// cleared.
type Ledger struct {
	mu     deadlock.RWMutex
	hasher mmr.Hasher
	logID  string
	states map[uint64]MMRState
	latest uint64
}

// NewLedger creates a ledger for the log identified by logID. An empty
// logID accepts commitments from any log.
func NewLedger(hasher mmr.Hasher, logID string) *Ledger {
	return &Ledger{
		hasher: hasher,
		logID:  logID,
		states: make(map[uint64]MMRState),
	}
}

func (l *Ledger) SetCommitment(_ context.Context, state MMRState) error {
	if l.logID != "" && state.LogID != l.logID {
		return fmt.Errorf("%w: %s", ErrLogMismatch, state.LogID)
	}
	if state.MMRSize != 0 && !mmr.IsValidSize(state.MMRSize) {
		return fmt.Errorf("%w: %d", mmr.ErrInvalidSize, state.MMRSize)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if state.MMRSize == 0 {
		l.states = make(map[uint64]MMRState)
		l.latest = 0
		return nil
	}
	if have, ok := l.states[state.MMRSize]; ok {
		if string(have.Root) != string(state.Root) {
			return fmt.Errorf("%w: %d", ErrConflictingRoot, state.MMRSize)
		}
		return nil
	}
	l.states[state.MMRSize] = state
	if state.MMRSize > l.latest {
		l.latest = state.MMRSize
	}
	return nil
}

// Get returns the commitment archived for size
func (l *Ledger) Get(size uint64) (MMRState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	state, ok := l.states[size]
	return state, ok
}

// Latest returns the commitment for the largest size archived
func (l *Ledger) Latest() (MMRState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	state, ok := l.states[l.latest]
	return state, ok
}

// VerifyProof checks proof against the root archived for the size the proof
// was made at.
func (l *Ledger) VerifyProof(value []byte, proof mmr.Proof) (bool, error) {
	state, ok := l.Get(proof.ElementsCount)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrNoCommitment, proof.ElementsCount)
	}
	return mmr.VerifyProof(l.hasher, value, proof, state.Root)
}

// VerifyConsistency checks that the range at proof.SizeB extends the range
// at proof.SizeA. Both sizes must have been archived and the commitment for
// SizeA must carry its peaks.
func (l *Ledger) VerifyConsistency(proof mmr.ConsistencyProof) (bool, error) {
	a, ok := l.Get(proof.SizeA)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrNoCommitment, proof.SizeA)
	}
	b, ok := l.Get(proof.SizeB)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrNoCommitment, proof.SizeB)
	}
	if len(a.Peaks) == 0 {
		return false, fmt.Errorf("%w: no peaks recorded for %d", ErrNoCommitment, proof.SizeA)
	}
	return mmr.VerifyConsistency(l.hasher, proof, a.Peaks, a.Root, b.Root)
}

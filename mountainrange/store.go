// Package mountainrange is an append only log of fixed width values that
// maintains a merkle mountain range over them.
//
// A single writer goroutine applies appends and clears in the order they are
// submitted. Readers see the last committed state, a write becomes visible
// only once all of its nodes are stored and its root is computed.
package mountainrange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-mountainrange/checkpoint"
	"github.com/forestrie/go-mountainrange/mmr"
	"github.com/forestrie/go-mountainrange/nodestore"
	"github.com/forestrie/go-mountainrange/snowflakeid"
	"github.com/google/uuid"
)

// State is a committed view of the range. Each call to Store.State returns
// its own copy of the slices.
type State struct {
	LeavesCount   uint64
	ElementsCount uint64
	Root          []byte
	Peaks         [][]byte
}

func (st State) clone() State {
	c := State{
		LeavesCount:   st.LeavesCount,
		ElementsCount: st.ElementsCount,
		Root:          bytes.Clone(st.Root),
	}
	if st.Peaks != nil {
		c.Peaks = make([][]byte, len(st.Peaks))
		for i, p := range st.Peaks {
			c.Peaks[i] = bytes.Clone(p)
		}
	}
	return c
}

type AppendResult struct {
	LeavesCount   uint64
	ElementsCount uint64
	// ElementIndex is the position the appended value was stored at
	ElementIndex uint64
	Root         []byte
}

type command struct {
	ctx   context.Context
	op    Op
	value []byte
	snap  Snapshot
	reply chan commandResult
}

type commandResult struct {
	result AppendResult
	err    error
}

type Store struct {
	log     logger.Logger
	nodes   nodestore.Store
	hasher  mmr.Hasher
	opts    StoreOptions
	ids     *snowflakeid.IDState
	journal *Journal
	metrics *metrics

	mu    deadlock.RWMutex
	state State

	commands  chan command
	closing   chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New opens a mountain range over nodes. If nodes already holds a range it
// is recovered, a trailing incomplete append is discarded.
func New(log logger.Logger, nodes nodestore.Store, hasher mmr.Hasher, opts ...Option) (*Store, error) {

	o := newStoreOptions(opts)

	ids, err := snowflakeid.NewIDState(o.IDConfig)
	if err != nil {
		return nil, err
	}

	s := &Store{
		log:      log,
		nodes:    nodes,
		hasher:   hasher,
		opts:     o,
		ids:      ids,
		journal:  NewJournal(o.JournalLimit),
		metrics:  newMetrics(o.Registerer, o.LogID.String()),
		commands: make(chan command, o.QueueDepth),
		closing:  make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	if err := s.recover(); err != nil {
		return nil, err
	}

	go s.run()
	return s, nil
}

// recover establishes the committed state from whatever the node store
// holds. An append interrupted part way leaves a size that is not a valid
// range, the nodes past the last valid size are discarded.
func (s *Store) recover() error {
	size := s.nodes.Size()
	valid := size
	for valid > 0 && !mmr.IsValidSize(valid) {
		valid--
	}
	if valid != size {
		s.log.Infof("discarding %d nodes of an incomplete append at %d", size-valid, valid)
		if err := s.nodes.Truncate(valid); err != nil {
			return err
		}
	}

	state, err := s.stateFor(valid)
	if err != nil {
		return err
	}
	s.state = state
	s.metrics.setCounts(state.LeavesCount, state.ElementsCount)
	if valid > 0 {
		s.log.Infof("recovered range %s: leaves %d, elements %d", s.opts.LogID, state.LeavesCount, state.ElementsCount)
	}
	return nil
}

// stateFor reads the peaks for size and computes its root.
func (s *Store) stateFor(size uint64) (State, error) {
	peaks, err := mmr.PeakHashes(s.nodes, size)
	if err != nil {
		return State{}, err
	}
	return State{
		LeavesCount:   mmr.LeafCount(size),
		ElementsCount: size,
		Root:          mmr.Root(s.hasher, size, peaks),
		Peaks:         peaks,
	}, nil
}

func (s *Store) LogID() uuid.UUID { return s.opts.LogID }
func (s *Store) Hasher() mmr.Hasher { return s.hasher }
func (s *Store) Journal() *Journal { return s.journal }
func (s *Store) CommitmentEpoch() uint8 { return s.opts.IDConfig.CommitmentEpoch }

// Append adds value as a new leaf. value must be exactly the hasher's width.
//
// If ctx is done before the writer accepts the request, nothing is
// appended. Once accepted the append is applied even if ctx ends while the
// caller waits for the result.
func (s *Store) Append(ctx context.Context, value []byte) (AppendResult, error) {
	if len(value) != s.hasher.Size() {
		return AppendResult{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidValue, len(value), s.hasher.Size())
	}
	// the caller keeps ownership of value
	v := make([]byte, len(value))
	copy(v, value)
	return s.submit(ctx, command{op: OpAppend, value: v})
}

// Clear discards every element and returns the range to empty.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.submit(ctx, command{op: OpClear})
	return err
}

func (s *Store) submit(ctx context.Context, cmd command) (AppendResult, error) {
	cmd.ctx = ctx
	cmd.reply = make(chan commandResult, 1)

	select {
	case <-s.closing:
		return AppendResult{}, ErrClosed
	default:
	}

	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return AppendResult{}, ctx.Err()
	case <-s.closing:
		return AppendResult{}, ErrClosed
	}

	select {
	case r := <-cmd.reply:
		return r.result, r.err
	case <-ctx.Done():
		return AppendResult{}, ctx.Err()
	case <-s.stopped:
		// the writer may have taken cmd before it stopped
		select {
		case r := <-cmd.reply:
			return r.result, r.err
		default:
			return AppendResult{}, ErrClosed
		}
	}
}

// run is the single writer. It owns every mutation of the node store.
func (s *Store) run() {
	defer close(s.stopped)
	for {
		select {
		case cmd := <-s.commands:
			s.apply(cmd)
		case <-s.closing:
			// fail anything still queued
			for {
				select {
				case cmd := <-s.commands:
					cmd.reply <- commandResult{err: ErrClosed}
				default:
					return
				}
			}
		}
	}
}

func (s *Store) apply(cmd command) {
	var r commandResult
	switch cmd.op {
	case OpAppend:
		r.result, r.err = s.applyAppend(cmd.value)
	case OpClear:
		r.err = s.applyClear()
	case OpRestore:
		r.err = s.applyRestore(cmd.snap)
	default:
		r.err = fmt.Errorf("unknown op %v", cmd.op)
	}
	if r.err != nil {
		s.metrics.failures.WithLabelValues(cmd.op.String()).Inc()
	} else {
		s.committed(cmd.ctx, cmd.op)
	}
	cmd.reply <- r
}

func (s *Store) applyAppend(value []byte) (AppendResult, error) {
	start := time.Now()
	committed := s.State()

	leafPos, size, err := mmr.AddLeaf(s.nodes, s.hasher, value)
	if err == nil {
		var next State
		if next, err = s.stateFor(size); err == nil {
			s.publish(next)
			s.metrics.appends.Inc()
			s.metrics.appendSeconds.Observe(time.Since(start).Seconds())
			s.log.Debugf("append: leaf %d at %d, elements %d", next.LeavesCount, leafPos, size)
			return AppendResult{
				LeavesCount:   next.LeavesCount,
				ElementsCount: next.ElementsCount,
				ElementIndex:  leafPos,
				Root:          bytes.Clone(next.Root),
			}, nil
		}
	}

	// Roll back to the committed size so the next append starts clean
	if terr := s.nodes.Truncate(committed.ElementsCount); terr != nil {
		return AppendResult{}, errors.Join(err, terr)
	}
	return AppendResult{}, err
}

func (s *Store) applyClear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.nodes.Truncate(0); err != nil {
		return err
	}
	s.state = State{Root: mmr.Root(s.hasher, 0, nil)}
	s.metrics.clears.Inc()
	s.log.Infof("cleared range %s", s.opts.LogID)
	return nil
}

// publish makes next the committed state
func (s *Store) publish(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// committed journals the write that produced the current state and hands
// the new commitment to the publisher.
func (s *Store) committed(ctx context.Context, op Op) {
	state := s.State()
	s.metrics.setCounts(state.LeavesCount, state.ElementsCount)

	id, err := s.ids.NextID()
	if err != nil {
		// The write has been applied, only its journal entry is lost.
		s.log.Infof("journal id for %v at %d: %v", op, state.ElementsCount, err)
	} else {
		s.journal.add(Entry{
			ID:            id,
			Op:            op,
			LeavesCount:   state.LeavesCount,
			ElementsCount: state.ElementsCount,
			Root:          state.Root,
		})
	}

	if s.opts.Publisher == nil {
		return
	}
	// Peaks let a ledger check consistency, signers drop them
	cs := checkpoint.MMRState{
		LogID:           s.opts.LogID.String(),
		MMRSize:         state.ElementsCount,
		Root:            state.Root,
		Timestamp:       time.Now().UnixMilli(),
		IDTimestamp:     id,
		CommitmentEpoch: uint32(s.opts.IDConfig.CommitmentEpoch),
		Peaks:           state.Peaks,
	}
	if err := s.opts.Publisher.SetCommitment(ctx, cs); err != nil {
		s.metrics.publishFailures.Inc()
		s.log.Infof("publishing commitment for %d: %v", state.ElementsCount, err)
	}
}

// State returns the last committed state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) Root() []byte {
	return s.State().Root
}

// Peaks returns the peak hashes of the committed range, left to right.
func (s *Store) Peaks() [][]byte {
	return s.State().Peaks
}

// Get returns the node stored at pos in the committed range.
func (s *Store) Get(pos uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pos == 0 || pos > s.state.ElementsCount {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidIndex, pos, s.state.ElementsCount)
	}
	return s.nodes.Get(pos)
}

// GetProof returns the inclusion proof for the node at pos against the
// committed range.
func (s *Store) GetProof(pos uint64) (mmr.Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pos == 0 || pos > s.state.ElementsCount {
		return mmr.Proof{}, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidIndex, pos, s.state.ElementsCount)
	}
	return mmr.InclusionProof(s.nodes, s.state.ElementsCount, pos)
}

// GetConsistencyProof proves the committed range extends the range it was
// when it had sizeA elements.
func (s *Store) GetConsistencyProof(sizeA uint64) (mmr.ConsistencyProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mmr.NewConsistencyProof(s.nodes, sizeA, s.state.ElementsCount)
}

// VerifyProof checks proof against the committed root. A proof made for a
// different size fails with ErrStaleProof, verify those against the root
// published for their size instead.
func (s *Store) VerifyProof(value []byte, proof mmr.Proof) (bool, error) {
	state := s.State()
	if proof.ElementsCount != state.ElementsCount {
		return false, fmt.Errorf("%w: proof size %d, range size %d", ErrStaleProof, proof.ElementsCount, state.ElementsCount)
	}
	return mmr.VerifyProof(s.hasher, value, proof, state.Root)
}

// Close stops the writer and closes the node store. Writes still queued
// fail with ErrClosed.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		<-s.stopped
		err = s.nodes.Close()
	})
	return err
}

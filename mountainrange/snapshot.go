package mountainrange

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	"github.com/forestrie/go-mountainrange/mmr"
	"github.com/klauspost/compress/zstd"
)

// Snapshot is the persisted form of a range. Hashes is keyed by position.
// Snapshot writes only the leaves, interior nodes are recomputed on restore
// and any that are present must agree.
type Snapshot struct {
	LeavesCount   uint64            `cbor:"1,keyasint"`
	ElementsCount uint64            `cbor:"2,keyasint"`
	Root          []byte            `cbor:"3,keyasint"`
	Hashes        map[uint64][]byte `cbor:"4,keyasint"`
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func NewSnapshotCodec() (dtcbor.CBORCodec, error) {
	codec, err := dtcbor.NewCBORCodec(
		dtcbor.NewDeterministicEncOpts(),
		dtcbor.NewDeterministicDecOpts(),
	)
	if err != nil {
		return dtcbor.CBORCodec{}, err
	}
	return codec, nil
}

// EncodeSnapshot returns the CBOR encoding of snap, zstd compressed if
// compress is set.
func EncodeSnapshot(snap Snapshot, compress bool) ([]byte, error) {
	codec, err := NewSnapshotCodec()
	if err != nil {
		return nil, err
	}
	data, err := codec.MarshalCBOR(snap)
	if err != nil {
		return nil, err
	}
	if !compress {
		return data, nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// DecodeSnapshot reverses EncodeSnapshot. Compression is detected.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return Snapshot{}, err
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return Snapshot{}, err
		}
	}
	codec, err := NewSnapshotCodec()
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := codec.UnmarshalInto(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Snapshot captures the committed range.
func (s *Store) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		LeavesCount:   s.state.LeavesCount,
		ElementsCount: s.state.ElementsCount,
		Root:          bytes.Clone(s.state.Root),
		Hashes:        make(map[uint64][]byte, s.state.LeavesCount),
	}
	for i := uint64(0); i < s.state.LeavesCount; i++ {
		pos := mmr.LeafPosition(i)
		value, err := s.nodes.Get(pos)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Hashes[pos] = value
	}
	return snap, nil
}

// Restore replaces the range with the one in snap. The restored root must
// match snap.Root, otherwise the range is left empty and ErrSnapshotRoot is
// returned.
func (s *Store) Restore(ctx context.Context, snap Snapshot) error {
	_, err := s.submit(ctx, command{op: OpRestore, snap: snap})
	return err
}

func (s *Store) applyRestore(snap Snapshot) error {
	if err := checkSnapshot(snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.nodes.Truncate(0); err != nil {
		return err
	}
	s.state = State{Root: mmr.Root(s.hasher, 0, nil)}

	err := s.restoreNodes(snap)
	if err == nil {
		var next State
		if next, err = s.stateFor(snap.ElementsCount); err == nil {
			if !bytes.Equal(next.Root, snap.Root) {
				err = fmt.Errorf("%w: at %d", ErrSnapshotRoot, snap.ElementsCount)
			} else {
				s.state = next
				s.log.Infof("restored range %s: leaves %d, elements %d", s.opts.LogID, next.LeavesCount, next.ElementsCount)
				return nil
			}
		}
	}
	if terr := s.nodes.Truncate(0); terr != nil {
		s.log.Infof("emptying after failed restore: %v", terr)
	}
	s.metrics.setCounts(0, 0)
	return err
}

func (s *Store) restoreNodes(snap Snapshot) error {
	for i := uint64(0); i < snap.LeavesCount; i++ {
		pos := mmr.LeafPosition(i)
		leaf, ok := snap.Hashes[pos]
		if !ok {
			return fmt.Errorf("%w: leaf %d at %d missing", ErrSnapshotInvalid, i, pos)
		}
		if _, _, err := mmr.AddLeaf(s.nodes, s.hasher, leaf); err != nil {
			return err
		}
	}

	// Interior nodes are optional, but must agree with what was rebuilt
	positions := make([]uint64, 0, len(snap.Hashes))
	for pos := range snap.Hashes {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	for _, pos := range positions {
		got, err := s.nodes.Get(pos)
		if err != nil {
			return err
		}
		if !bytes.Equal(got, snap.Hashes[pos]) {
			return fmt.Errorf("%w: node %d", ErrSnapshotRoot, pos)
		}
	}
	return nil
}

func checkSnapshot(snap Snapshot) error {
	if !mmr.IsValidSize(snap.ElementsCount) {
		return fmt.Errorf("%w: %d elements", ErrSnapshotInvalid, snap.ElementsCount)
	}
	if mmr.ElementsCount(snap.LeavesCount) != snap.ElementsCount {
		return fmt.Errorf("%w: %d leaves do not make %d elements", ErrSnapshotInvalid, snap.LeavesCount, snap.ElementsCount)
	}
	for pos := range snap.Hashes {
		if pos == 0 || pos > snap.ElementsCount {
			return fmt.Errorf("%w: position %d", ErrSnapshotInvalid, pos)
		}
	}
	return nil
}

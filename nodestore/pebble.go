package nodestore

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Pebble keeps nodes in a pebble database, one key per position.
type Pebble struct {
	opts StoreOptions
	db   *pebble.DB
	wo   *pebble.WriteOptions
	size atomic.Uint64
}

func OpenPebble(dir string, opts ...Option) (*Pebble, error) {
	o := newStoreOptions(opts)

	popts := &pebble.Options{}
	if o.InMemory {
		popts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, err
	}

	s := &Pebble{opts: o, db: db, wo: &pebble.WriteOptions{Sync: o.SyncWrites}}

	value, closer, err := db.Get(sizeKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		db.Close()
		return nil, err
	}
	size, err := decodeSize(value)
	closer.Close()
	if err != nil {
		db.Close()
		return nil, err
	}
	s.size.Store(size)
	return s, nil
}

func (s *Pebble) Get(pos uint64) ([]byte, error) {
	if pos == 0 || pos > s.size.Load() {
		return nil, notFound(pos)
	}
	value, closer, err := s.db.Get(nodeKey(pos))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, notFound(pos)
	}
	if err != nil {
		return nil, err
	}
	ret := make([]byte, len(value))
	copy(ret, value)
	closer.Close()
	return ret, nil
}

// Append writes the node and the new size in one batch. A single writer is
// assumed.
func (s *Pebble) Append(value []byte) (uint64, error) {
	if err := s.opts.checkWidth(value); err != nil {
		return 0, fmt.Errorf("%w: %d bytes", err, len(value))
	}
	pos := s.size.Load() + 1

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(nodeKey(pos), value, s.wo); err != nil {
		return 0, err
	}
	if err := b.Set(sizeKey, encodeSize(pos), s.wo); err != nil {
		return 0, err
	}
	if err := b.Commit(s.wo); err != nil {
		return 0, err
	}
	s.size.Store(pos)
	return pos, nil
}

func (s *Pebble) Size() uint64 { return s.size.Load() }

func (s *Pebble) Truncate(size uint64) error {
	current := s.size.Load()
	if size > current {
		return fmt.Errorf("%w: %d > %d", ErrTruncate, size, current)
	}
	s.size.Store(size)

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(nodeKey(size+1), nodeKey(math.MaxUint64), s.wo); err != nil {
		return err
	}
	// DeleteRange excludes the end key
	if err := b.Delete(nodeKey(math.MaxUint64), s.wo); err != nil {
		return err
	}
	if err := b.Set(sizeKey, encodeSize(size), s.wo); err != nil {
		return err
	}
	return b.Commit(s.wo)
}

func (s *Pebble) Close() error { return s.db.Close() }

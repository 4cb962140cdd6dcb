package nodestore

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger"
)

// Badger keeps nodes in a badger database, one key per position. The node
// count is stored alongside so a reopened store resumes where it left off.
type Badger struct {
	opts StoreOptions
	db   *badger.DB
	size atomic.Uint64
}

func OpenBadger(dir string, opts ...Option) (*Badger, error) {
	o := newStoreOptions(opts)

	// badger always needs a directory, InMemory is not supported here.
	db, err := badger.Open(badger.DefaultOptions(dir).WithSyncWrites(o.SyncWrites))
	if err != nil {
		return nil, err
	}

	s := &Badger{opts: o, db: db}
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sizeKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		size, err := decodeSize(value)
		if err != nil {
			return err
		}
		s.size.Store(size)
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Badger) Get(pos uint64) ([]byte, error) {
	if pos == 0 || pos > s.size.Load() {
		return nil, notFound(pos)
	}
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(pos))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound(pos)
	}
	return value, err
}

// Append writes the node and the new size in one transaction. A single
// writer is assumed.
func (s *Badger) Append(value []byte) (uint64, error) {
	if err := s.opts.checkWidth(value); err != nil {
		return 0, fmt.Errorf("%w: %d bytes", err, len(value))
	}
	pos := s.size.Load() + 1
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(nodeKey(pos), value); err != nil {
			return err
		}
		return txn.Set(sizeKey, encodeSize(pos))
	})
	if err != nil {
		return 0, err
	}
	s.size.Store(pos)
	return pos, nil
}

func (s *Badger) Size() uint64 { return s.size.Load() }

func (s *Badger) Truncate(size uint64) error {
	current := s.size.Load()
	if size > current {
		return fmt.Errorf("%w: %d > %d", ErrTruncate, size, current)
	}
	if size == 0 {
		if err := s.db.DropAll(); err != nil {
			return err
		}
		s.size.Store(0)
		return nil
	}

	// Lower the size first so readers stop asking for the discarded nodes.
	s.size.Store(size)
	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()
	for pos := size + 1; pos <= current; pos++ {
		err := txn.Delete(nodeKey(pos))
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err = txn.Commit(); err != nil {
				return err
			}
			txn = s.db.NewTransaction(true)
			err = txn.Delete(nodeKey(pos))
		}
		if err != nil {
			return err
		}
	}
	if err := txn.Set(sizeKey, encodeSize(size)); err != nil {
		return err
	}
	return txn.Commit()
}

func (s *Badger) Close() error { return s.db.Close() }

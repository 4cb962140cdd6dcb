package nodestore

import (
	"errors"
	"fmt"
	"os"

	"github.com/algorand/go-deadlock"
)

var (
	ErrWidthRequired = errors.New("the file store requires a fixed value width")
	ErrTornFile      = errors.New("file length is not a whole number of nodes")
)

// File is an append only flat file of fixed width nodes. The node at position
// p starts at byte (p-1)*width.
type File struct {
	mu   deadlock.RWMutex
	opts StoreOptions
	f    *os.File
	size uint64
}

func OpenFile(path string, opts ...Option) (*File, error) {
	o := newStoreOptions(opts)
	if o.Width <= 0 {
		return nil, ErrWidthRequired
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size()%int64(o.Width) != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrTornFile, path, info.Size())
	}

	return &File{
		opts: o,
		f:    f,
		size: uint64(info.Size()) / uint64(o.Width),
	}, nil
}

func (s *File) offset(pos uint64) int64 {
	return int64(pos-1) * int64(s.opts.Width)
}

func (s *File) Get(pos uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.f == nil {
		return nil, ErrClosed
	}
	if pos == 0 || pos > s.size {
		return nil, notFound(pos)
	}
	value := make([]byte, s.opts.Width)
	if _, err := s.f.ReadAt(value, s.offset(pos)); err != nil {
		return nil, err
	}
	return value, nil
}

func (s *File) Append(value []byte) (uint64, error) {
	if err := s.opts.checkWidth(value); err != nil {
		return 0, fmt.Errorf("%w: %d bytes", err, len(value))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, ErrClosed
	}

	pos := s.size + 1
	if _, err := s.f.WriteAt(value, s.offset(pos)); err != nil {
		return 0, err
	}
	if s.opts.SyncWrites {
		if err := s.f.Sync(); err != nil {
			return 0, err
		}
	}
	s.size = pos
	return pos, nil
}

func (s *File) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *File) Truncate(size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	if size > s.size {
		return fmt.Errorf("%w: %d > %d", ErrTruncate, size, s.size)
	}
	if err := s.f.Truncate(int64(size) * int64(s.opts.Width)); err != nil {
		return err
	}
	s.size = size
	return nil
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

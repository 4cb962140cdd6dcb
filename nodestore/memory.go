package nodestore

import (
	"bytes"
	"fmt"

	"github.com/algorand/go-deadlock"
)

// Memory is a growable in process arena. The node at position p lives at
// nodes[p-1].
type Memory struct {
	mu    deadlock.RWMutex
	opts  StoreOptions
	nodes [][]byte
}

func NewMemory(opts ...Option) *Memory {
	return &Memory{opts: newStoreOptions(opts)}
}

func (m *Memory) Get(pos uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pos == 0 || pos > uint64(len(m.nodes)) {
		return nil, notFound(pos)
	}
	// callers own what they get back, stored nodes never change
	return bytes.Clone(m.nodes[pos-1]), nil
}

func (m *Memory) Append(value []byte) (uint64, error) {
	if err := m.opts.checkWidth(value); err != nil {
		return 0, fmt.Errorf("%w: %d bytes", err, len(value))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = append(m.nodes, append([]byte(nil), value...))
	return uint64(len(m.nodes)), nil
}

func (m *Memory) Size() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.nodes))
}

func (m *Memory) Truncate(size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size > uint64(len(m.nodes)) {
		return fmt.Errorf("%w: %d > %d", ErrTruncate, size, len(m.nodes))
	}
	clear(m.nodes[size:])
	m.nodes = m.nodes[:size]
	return nil
}

func (m *Memory) Close() error { return nil }

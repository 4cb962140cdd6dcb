// Package nodestore provides backing storage for the nodes of a mountain
// range. Nodes are fixed width values addressed by a stable, one based,
// position. Positions are handed out in append order and never reused.
package nodestore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/forestrie/go-mountainrange/mmr"
)

// Store is the position to hash contract every backend implements. Readers
// may call Get concurrently with a single appending writer.
type Store interface {
	// Get returns the value at pos.
	Get(pos uint64) ([]byte, error)

	// Append stores value at the next position and returns that position.
	Append(value []byte) (uint64, error)

	// Size is the number of nodes stored, and so the last position handed out.
	Size() uint64

	// Truncate discards every node after size. Truncate(0) empties the store.
	Truncate(size uint64) error

	Close() error
}

var (
	ErrValueWidth = errors.New("value has the wrong width for the store")
	ErrTruncate   = errors.New("can not truncate beyond the end of the store")
	ErrClosed     = errors.New("store is closed")
)

func notFound(pos uint64) error {
	return fmt.Errorf("%w: position %d", mmr.ErrNotFound, pos)
}

// nodeKey is the key used by the key value backends for a position. Big
// endian so that keys sort in position order.
func nodeKey(pos uint64) []byte {
	key := make([]byte, 9)
	key[0] = nodePrefix
	binary.BigEndian.PutUint64(key[1:], pos)
	return key
}

const (
	nodePrefix = 0x01
	metaPrefix = 0x02
)

var sizeKey = []byte{metaPrefix, 's', 'i', 'z', 'e'}

func encodeSize(size uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, size)
	return b
}

func decodeSize(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("stored size has %d bytes, want 8", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

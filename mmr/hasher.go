package mmr

// Hasher is the fixed 2-input hash function a range is built with. Every
// value stored in a range, leaf or interior, is Size() bytes wide.
type Hasher interface {
	Size() int
	HashPair(left, right []byte) []byte
}

// NodeGetter reads the value stored at a one based position.
type NodeGetter interface {
	Get(pos uint64) ([]byte, error)
}

// NodeAppender is the storage contract needed to grow a range. Append stores
// value at the next free position and returns that position.
type NodeAppender interface {
	NodeGetter
	Append(value []byte) (uint64, error)
}

package mmr

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"
)

// sha256Hasher is the test hasher, H(l, r) = sha256(l || r)
type sha256Hasher struct{}

func (sha256Hasher) Size() int { return sha256.Size }

func (sha256Hasher) HashPair(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

type testDb struct {
	t     *testing.T
	store map[uint64][]byte
	next  uint64
}

func NewTestDb(t *testing.T) *testDb {
	db := testDb{
		t: t, store: make(map[uint64][]byte),
		next: uint64(1),
	}
	return &db
}

// NewCanonicalTestDB populates a test data base with size = 39 and where the
// leaf hashes are the hashes of the leaf positions. This tree is constructed
// by hand so is suitable for tests which cover the tree building itself.
//
// Note that any valid size < 39 is also contained in this range. So tests
// that want to work with smaller trees can just use this one but pretend it's
// only however big they need.
func NewCanonicalTestDB(t *testing.T) *testDb {

	// 4                         31
	//
	//
	// 3              15                       30
	//              /    \
	//           /          \
	// 2        7            14           22             29                38
	//        /   \        /    \
	// 1     3     6      10     13     18     21     25       28       34      37
	//      / \   / \    / \   /  \   /  \
	// 0   1   2 4   5  8   9 11  12 16  17 19  20 23  24   26   27  32  33   35  36   39
	// .   0 . 1 2 . 3 .4 . 5  6 . 7  8 . 9 10  11 12  13   14   15  16  17   18  19   20

	db := testDb{
		t: t, store: make(map[uint64][]byte),
		next: uint64(40),
	}

	// height 0 (the leaves)
	for _, pos := range []uint64{
		1, 2, 4, 5, 8, 9, 11, 12, 16, 17, 19, 20, 23, 24, 26, 27, 32, 33, 35, 36, 39} {
		db.put(pos, hashNum(pos))
	}

	// height 1
	db.put(3, db.hashPair(1, 2))
	db.put(6, db.hashPair(4, 5))
	db.put(10, db.hashPair(8, 9))
	db.put(13, db.hashPair(11, 12))
	db.put(18, db.hashPair(16, 17))
	db.put(21, db.hashPair(19, 20))
	db.put(25, db.hashPair(23, 24))
	db.put(28, db.hashPair(26, 27))
	db.put(34, db.hashPair(32, 33))
	db.put(37, db.hashPair(35, 36))

	// height 2
	db.put(7, db.hashPair(3, 6))
	db.put(14, db.hashPair(10, 13))
	db.put(22, db.hashPair(18, 21))
	db.put(29, db.hashPair(25, 28))
	db.put(38, db.hashPair(34, 37))

	// height 3
	db.put(15, db.hashPair(7, 14))
	db.put(30, db.hashPair(22, 29))

	// height 4
	db.put(31, db.hashPair(15, 30))

	return &db
}

func (db *testDb) Append(value []byte) (uint64, error) {
	pos := db.next
	db.store[pos] = value
	db.next += 1
	return pos, nil
}

func (db *testDb) Get(pos uint64) ([]byte, error) {
	if value, ok := db.store[pos]; ok {
		return value, nil
	}
	return nil, ErrNotFound
}

func (db *testDb) mustGet(pos uint64) []byte {
	if value, err := db.Get(pos); err == nil {
		return value
	}
	db.t.Fatalf("position %v not found", pos)
	return nil
}

// put is provided for testing purposes only, the range never overwrites
func (db *testDb) put(pos uint64, value []byte) {
	if _, ok := db.store[pos]; ok {
		db.t.Fatalf("position %v already set", pos)
	}
	db.store[pos] = value
}

func (db *testDb) hashPair(left, right uint64) []byte {
	return sha256Hasher{}.HashPair(db.mustGet(left), db.mustGet(right))
}

func hashNum(num uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, num)
	h := sha256.New()
	h.Write(b)
	return h.Sum(nil)
}

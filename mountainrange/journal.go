package mountainrange

import (
	"fmt"

	"github.com/algorand/go-deadlock"
)

// Op is the kind of write recorded in the journal.
type Op uint8

const (
	OpAppend Op = iota + 1
	OpClear
	OpRestore
)

func (op Op) String() string {
	switch op {
	case OpAppend:
		return "append"
	case OpClear:
		return "clear"
	case OpRestore:
		return "restore"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

func (op Op) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

func (op *Op) UnmarshalText(text []byte) error {
	switch string(text) {
	case "append":
		*op = OpAppend
	case "clear":
		*op = OpClear
	case "restore":
		*op = OpRestore
	default:
		return fmt.Errorf("unknown journal op %q", text)
	}
	return nil
}

// Entry records one applied write and the state it produced. ID is a
// snowflake id, so entries order by the time they were applied.
type Entry struct {
	ID            uint64 `json:"id"`
	Op            Op     `json:"op"`
	LeavesCount   uint64 `json:"leavesCount"`
	ElementsCount uint64 `json:"elementsCount"`
	Root          []byte `json:"root"`
}

// Journal is a bounded record of the writes applied by the store. Only the
// writer goroutine adds to it, any goroutine may read it.
type Journal struct {
	mu      deadlock.RWMutex
	limit   int
	entries []Entry
}

func NewJournal(limit int) *Journal {
	return &Journal{limit: limit}
}

func (j *Journal) add(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	if j.limit > 0 && len(j.entries) > j.limit {
		// copy down so the backing array does not grow without bound
		n := copy(j.entries, j.entries[len(j.entries)-j.limit:])
		j.entries = j.entries[:n]
	}
}

// Since returns the retained entries with an id greater than after, oldest
// first.
func (j *Journal) Since(after uint64) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	// ids increase, so binary search for the first later entry
	lo, hi := 0, len(j.entries)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if j.entries[mid].ID <= after {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	out := make([]Entry, len(j.entries)-lo)
	copy(out, j.entries[lo:])
	return out
}

// Last returns the most recent entry
func (j *Journal) Last() (Entry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.entries) == 0 {
		return Entry{}, false
	}
	return j.entries[len(j.entries)-1], true
}

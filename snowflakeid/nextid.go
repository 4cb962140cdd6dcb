// Package snowflakeid generates unique, time ordered 64 bit ids.
//
// The top 40 bits are milliseconds since the commitment epoch. The low 24
// bits hold a worker id and a per millisecond sequence. Ids from one
// generator strictly increase.
package snowflakeid

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

const (
	// MaxSpins is the most compare and swap attempts a single call to NextID
	// is permitted.
	MaxSpins = 100
)

var (
	ErrWorkerBitRange    = errors.New("the bit allocation for worker id and sequence overflows what is reserved below the timestamp")
	ErrWorkerIDRange     = errors.New("the worker id does not fit in the configured worker bits")
	ErrOverloaded        = errors.New("the id generator is over loaded for its configuration")
	ErrClockError        = errors.New("the reading from system time doesn't make any realistic sense")
	ErrSequenceViolation = errors.New("the generator produced two consecutive values that violate either the monotonic or the uniqueness promises")

	// The nanosecond unix time overflows an int64 in 2262. This guards
	// against badly configured clocks.
	UnixNanoEpochEndSentinel = time.Date(2261, 1, 1, 1, 1, 1, 1, time.UTC)
)

type IDState struct {
	allowSpins int

	// maskedWorkerID is the worker id shifted into its bit position
	maskedWorkerID uint64

	seqMask uint64

	epochStartWallClock      time.Time     // no monotonic clock reading
	generatorStart           time.Time     // includes the monotonic clock reading
	generatorStartWallOffset time.Duration // generatorStart - epochStart

	// monotonic holds the time and sequence of the last id, but not the
	// worker id. It only ever increases.
	monotonic atomic.Uint64
}

func NewIDState(cfg Config) (*IDState, error) {
	workerBits := cfg.WorkerBits
	if workerBits == 0 {
		workerBits = DefaultWorkerBits
	}
	seqBits := MaxWorkerBits - workerBits
	if workerBits < MinWorkerBits || seqBits < MinWorkerBits {
		return nil, fmt.Errorf("%d worker bits: %w", workerBits, ErrWorkerBitRange)
	}
	if uint64(cfg.WorkerID) >= 1<<workerBits {
		return nil, fmt.Errorf("%d in %d bits: %w", cfg.WorkerID, workerBits, ErrWorkerIDRange)
	}

	s := &IDState{
		allowSpins:     int(cfg.AllowSpins),
		maskedWorkerID: uint64(cfg.WorkerID) << seqBits,
		seqMask:        (1 << seqBits) - 1,
	}
	if err := s.initTime(cfg.CommitmentEpoch); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *IDState) EpochStart() time.Time {
	return s.epochStartWallClock
}

func (s *IDState) initTime(epoch uint8) error {
	// Times are taken relative to the generator start so that NextID sees a
	// monotonic clock. Don't call UTC() here, it strips the monotonic reading.
	s.generatorStart = time.Now()
	if s.generatorStart.After(UnixNanoEpochEndSentinel) {
		return fmt.Errorf("the clock reading is close to overflowing the limit of an int64: %w", ErrClockError)
	}
	s.epochStartWallClock = EpochTimeUTC(epoch)
	s.generatorStartWallOffset = s.generatorStart.Sub(s.epochStartWallClock)
	return nil
}

// millisecondMonotonicNow returns milliseconds since the epoch, measured on
// the monotonic clock from the generator start.
func (s *IDState) millisecondMonotonicNow() uint64 {
	epochNow := time.Since(s.generatorStart) + s.generatorStartWallOffset
	return uint64(epochNow / time.Millisecond)
}

// NextID returns the next value in a time ordered, unique and monotonic
// series. If that can't be assured the function errors, and the caller
// should back off briefly (with jitter) or give up.
func (s *IDState) NextID() (uint64, error) {

	var next uint64

	// allowSpins == 0 means try once
	for i := 0; i <= s.allowSpins; i++ {

		now := s.millisecondMonotonicNow()
		last := s.monotonic.Load()

		lastTime := last >> TimeShift
		lastSeq := last & s.seqMask

		switch {
		case now > lastTime:
			// a new millisecond, the sequence restarts at zero
			next = now << TimeShift

		case lastSeq == s.seqMask:
			// Sequence exhausted. Force the next millisecond, lastTime is
			// >= now here.
			next = (lastTime + 1) << TimeShift

		default:
			// The sequence is in the low order bits
			next = last + 1
		}

		if next <= last {
			return 0, fmt.Errorf("%016x:%016x %02x:%02x %d:%d:%w", last, next, lastSeq, s.seqMask, lastTime, now, ErrSequenceViolation)
		}

		if s.monotonic.CompareAndSwap(last, next) {
			break
		}
		next = 0
	}

	if next == 0 {
		// Lost every CAS race we were allowed. Anything other than erroring
		// risks a duplicate.
		return 0, ErrOverloaded
	}
	return next | s.maskedWorkerID, nil
}

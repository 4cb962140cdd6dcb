package snowflakeid

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrMilliEpochOverflow = errors.New("our epoch allows for up to 2^40 milliseconds")
)

const epochMillis = (1 << TimeBits) - 1

// IDMilliSplit separates id into its millisecond time and the low 24 bits
// holding the worker id and sequence.
func IDMilliSplit(id uint64) (uint64, uint32) {
	ms := id >> TimeShift
	low := uint32(id &^ TimeMask)
	return ms, low
}

// IDUnixMilli returns the unix time, in milliseconds, at which id was issued
func IDUnixMilli(id uint64, epoch uint8) (int64, error) {
	ms, _ := IDMilliSplit(id)
	start := uint64(EpochMS(epoch))
	if ms > math.MaxInt64-start {
		return 0, fmt.Errorf("%d past epoch %d: %w", ms, epoch, ErrMilliEpochOverflow)
	}
	return int64(start + ms), nil
}

// IDTime returns the time id was issued given the start of its epoch
func IDTime(id uint64, epochStart time.Time) time.Time {
	ms, _ := IDMilliSplit(id)
	return epochStart.Add(time.Duration(ms) * time.Millisecond)
}

// EpochMS is the unix millisecond time at which epoch begins
func EpochMS(epoch uint8) int64 {
	return int64(epoch) * epochMillis
}

func EpochTimeUTC(epoch uint8) time.Time {
	return time.UnixMilli(EpochMS(epoch)).UTC()
}

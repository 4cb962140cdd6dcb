package snowflakeid

type Config struct {
	// CommitmentEpoch determines our reference zero time with respect to unix
	// time. Each epoch is ~34 years and unix time 2^40 ms is the start of
	// epoch 1, which is current.
	CommitmentEpoch uint8

	// WorkerID distinguishes generators that must never produce the same id,
	// for example several mountain ranges journaling into one sink.
	WorkerID uint16

	// WorkerBits is how many of the 24 low order bits are given to WorkerID,
	// the remainder count ids within a millisecond. Zero means
	// DefaultWorkerBits.
	WorkerBits int

	// AllowSpins should typically be set to MaxSpins. Setting it to zero is
	// supported and makes the generator error rather than retry under
	// contention.
	AllowSpins uint8
}

const (
	// TimeBits is the number of bits in the id reserved for time. Our
	// timestamp has millisecond precision and this gives an epoch of 34
	// years.
	TimeBits  = 40
	TimeShift = 64 - 40

	TimeMask uint64 = ((1 << TimeBits) - 1) << TimeShift

	// MaxWorkerBits is the room left below the time for worker id and
	// sequence together
	MaxWorkerBits = 24
	// MinWorkerBits is the least either the worker id or the sequence may have
	MinWorkerBits     = 8
	DefaultWorkerBits = 8
)

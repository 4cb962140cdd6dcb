// Package checkpoint publishes and verifies commitments to the state of a
// mountain range.
package checkpoint

import (
	"context"

	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
)

// MMRState is a commitment to the state of a range at one size.
type MMRState struct {
	// The size of the range defines the path to the root and the full
	// structure of the tree. Any later state of the same log can reproduce
	// this root, which is what makes old proofs verifiable.
	MMRSize uint64 `cbor:"1,keyasint" json:"mmrSize"`
	Root    []byte `cbor:"2,keyasint" json:"root"`
	// Timestamp is the unix time (milliseconds) read when the state was
	// committed. Including it allows for the same root to be re-signed.
	Timestamp int64 `cbor:"3,keyasint" json:"timestamp"`

	// IDTimestamp is the snowflake id of the journal entry for the write
	// that produced MMRSize.
	IDTimestamp uint64 `cbor:"4,keyasint" json:"idTimestamp"`

	// Peaks, when present, are the peak hashes committed by Root. They are
	// needed to check consistency from this state to a later one.
	Peaks [][]byte `cbor:"5,keyasint,omitempty" json:"peaks,omitempty"`

	// The epoch the IDTimestamp is relative to
	CommitmentEpoch uint32 `cbor:"6,keyasint" json:"commitmentEpoch"`

	LogID string `cbor:"7,keyasint" json:"logId"`
}

// Publisher receives each new commitment to a range. Implementations must be
// safe to call from the range writer while other goroutines read from them.
type Publisher interface {
	SetCommitment(ctx context.Context, state MMRState) error
}

// Publishers fans a commitment out to several publishers. Every publisher is
// called and the first error is returned.
type Publishers []Publisher

func (ps Publishers) SetCommitment(ctx context.Context, state MMRState) error {
	var first error
	for _, p := range ps {
		if err := p.SetCommitment(ctx, state); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func NewCodec() (dtcbor.CBORCodec, error) {
	codec, err := dtcbor.NewCBORCodec(
		dtcbor.NewDeterministicEncOpts(),
		dtcbor.NewDeterministicDecOpts(), // unsigned int decodes to uint64
	)
	if err != nil {
		return dtcbor.CBORCodec{}, err
	}
	return codec, nil
}

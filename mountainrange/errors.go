package mountainrange

import (
	"errors"

	"github.com/forestrie/go-mountainrange/mmr"
)

var (
	ErrStaleProof      = errors.New("proof was made for a different range size")
	ErrClosed          = errors.New("mountain range is closed")
	ErrSnapshotInvalid = errors.New("snapshot does not describe a valid range")
	ErrSnapshotRoot    = errors.New("snapshot root does not match its nodes")

	ErrInvalidIndex = mmr.ErrInvalidIndex
	ErrInvalidValue = mmr.ErrInvalidValue
)

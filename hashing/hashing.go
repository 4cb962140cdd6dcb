// Package hashing provides the 2-input hash functions a mountain range can be
// built with.
package hashing

import (
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"github.com/algorand/go-sumhash"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// HashType represents different hash functions
type HashType uint16

// types of hashes
const (
	SHA256 HashType = iota
	SHA512_256
	SHA3_256
	Keccak256
	Blake2b256
	Sumhash512
	MiMCBN254
	MaxHashType
)

var (
	ErrUnknownHash = errors.New("unknown hash type")
)

// Validate verifies that the hash type is in a valid range.
func (h HashType) Validate() error {
	if h >= MaxHashType {
		return fmt.Errorf("%w: %d", ErrUnknownHash, h)
	}
	return nil
}

func (h HashType) String() string {
	switch h {
	case SHA256:
		return "sha256"
	case SHA512_256:
		return "sha512_256"
	case SHA3_256:
		return "sha3_256"
	case Keccak256:
		return "keccak256"
	case Blake2b256:
		return "blake2b_256"
	case Sumhash512:
		return "sumhash512"
	case MiMCBN254:
		return "mimc_bn254"
	default:
		return ""
	}
}

// UnmarshalHashType decodes a string into the HashType enum
func UnmarshalHashType(s string) (HashType, error) {
	for h := HashType(0); h < MaxHashType; h++ {
		if h.String() == s {
			return h, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownHash, s)
}

// MarshalText makes the hash type readable in yaml and json configuration
func (h HashType) MarshalText() ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return []byte(h.String()), nil
}

func (h *HashType) UnmarshalText(text []byte) error {
	v, err := UnmarshalHashType(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// Hasher implements the fixed 2-input hash used for every interior node and
// for the root commitment. It is safe for concurrent use, each call gets its
// own hash state.
type Hasher struct {
	hashType HashType
	newHash  func() hash.Hash
	size     int

	// field hashes only accept canonical field elements, inputs are packed
	// into them with packElements.
	field bool
}

// New returns the Hasher for the hash type
func New(hashType HashType) (*Hasher, error) {
	h := &Hasher{hashType: hashType}
	switch hashType {
	case SHA256:
		h.newHash = sha256.New
	case SHA512_256:
		h.newHash = sha512.New512_256
	case SHA3_256:
		h.newHash = sha3.New256
	case Keccak256:
		h.newHash = sha3.NewLegacyKeccak256
	case Blake2b256:
		h.newHash = newBlake2b256
	case Sumhash512:
		h.newHash = func() hash.Hash { return sumhash.New512(nil) }
	case MiMCBN254:
		h.newHash = func() hash.Hash { return mimc.NewMiMC() }
		h.field = true
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownHash, hashType)
	}
	h.size = h.newHash().Size()
	return h, nil
}

// MustNew is New for hash types known to be valid
func MustNew(hashType HashType) *Hasher {
	h, err := New(hashType)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *Hasher) Type() HashType { return h.hashType }

func (h *Hasher) Size() int { return h.size }

// HashPair returns H(left || right)
func (h *Hasher) HashPair(left, right []byte) []byte {
	hasher := h.newHash()
	if h.field {
		// left and right are always the hasher's width
		packElements(hasher, left)
		packElements(hasher, right)
		return hasher.Sum(nil)
	}
	hasher.Write(left)
	hasher.Write(right)
	return hasher.Sum(nil)
}

// Sum hashes arbitrary data to a value of the hasher's width, suitable for
// use as a leaf.
func (h *Hasher) Sum(data []byte) []byte {
	hasher := h.newHash()
	if !h.field {
		hasher.Write(data)
		return hasher.Sum(nil)
	}
	packElements(hasher, data)
	// the length element separates inputs that differ only by trailing zeros
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(data)))
	packElements(hasher, n[:])
	return hasher.Sum(nil)
}

// elementPayload is the number of input bytes carried by one field element.
// Any 16 bytes is below the bn254 scalar modulus, so no input is reduced and
// distinct inputs of the same length give distinct element sequences.
const elementPayload = fr.Bytes / 2

// packElements writes b to a field hash as a sequence of canonical
// elements, each holding up to elementPayload bytes right aligned.
func packElements(w hash.Hash, b []byte) {
	var block [fr.Bytes]byte
	for len(b) > 0 {
		n := min(len(b), elementPayload)
		clear(block[:])
		copy(block[fr.Bytes-n:], b[:n])
		w.Write(block[:])
		b = b[n:]
	}
}

func newBlake2b256() hash.Hash {
	// only a key longer than 64 bytes is an error
	h, _ := blake2b.New256(nil)
	return h
}

package checkpoint

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"strconv"

	"github.com/datatrails/go-datatrails-common/azblob"
	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/veraison/go-cose"
)

const (
	checkpointPrefix = "v1/mountainranges"
	checkpointExt    = ".cbor"
	signedExt        = ".sth"
)

type blobWriter interface {
	Put(
		ctx context.Context,
		identity string,
		source io.ReadSeekCloser,
		opts ...azblob.Option,
	) (*azblob.WriteResponse, error)
}

// Encoder produces the blob content for a commitment
type Encoder interface {
	Encode(state MMRState) ([]byte, error)
	Ext() string
}

type plainEncoder struct {
	codec dtcbor.CBORCodec
}

func (e plainEncoder) Encode(state MMRState) ([]byte, error) { return e.codec.MarshalCBOR(state) }
func (e plainEncoder) Ext() string { return checkpointExt }

// NewPlainEncoder writes the commitment as CBOR, unsigned.
func NewPlainEncoder(codec dtcbor.CBORCodec) Encoder {
	return plainEncoder{codec: codec}
}

type signedEncoder struct {
	signer     Signer
	coseSigner cose.Signer
	keyID      string
	publicKey  *ecdsa.PublicKey
	subject    string
}

func (e signedEncoder) Encode(state MMRState) ([]byte, error) {
	return e.signer.Sign1(e.coseSigner, e.keyID, e.publicKey, e.subject, state, nil)
}
func (e signedEncoder) Ext() string { return signedExt }

// NewSignedEncoder writes the commitment as a COSE Sign1 message with the
// root detached.
func NewSignedEncoder(
	signer Signer, coseSigner cose.Signer, keyID string, publicKey *ecdsa.PublicKey, subject string) Encoder {
	return signedEncoder{
		signer:     signer,
		coseSigner: coseSigner,
		keyID:      keyID,
		publicKey:  publicKey,
		subject:    subject,
	}
}

// BlobPublisher writes each commitment to its own blob. Blobs are only ever
// created, an existing blob at the same path is an error.
type BlobPublisher struct {
	log     logger.Logger
	store   blobWriter
	encoder Encoder
}

func NewBlobPublisher(log logger.Logger, store blobWriter, encoder Encoder) *BlobPublisher {
	return &BlobPublisher{
		log:     log,
		store:   store,
		encoder: encoder,
	}
}

// BlobPath returns the path for a commitment. The id timestamp keeps the
// paths unique when a cleared range reaches the same size again.
func BlobPath(state MMRState, ext string) string {
	return fmt.Sprintf("%s/%s/checkpoints/%020d-%016x%s",
		checkpointPrefix, state.LogID, state.MMRSize, state.IDTimestamp, ext)
}

func (p *BlobPublisher) SetCommitment(ctx context.Context, state MMRState) error {
	if state.MMRSize == 0 {
		// nothing to commit to for an empty range
		return nil
	}
	data, err := p.encoder.Encode(state)
	if err != nil {
		return err
	}

	path := BlobPath(state, p.encoder.Ext())
	tags := map[string]string{
		"logid":   state.LogID,
		"mmrsize": strconv.FormatUint(state.MMRSize, 10),
	}
	// The way to spell 'fail without modifying if the blob exists' is to
	// require that no blob matches *any* etag.
	_, err = p.store.Put(ctx, path, azblob.NewBytesReaderCloser(data),
		azblob.WithTags(tags), azblob.WithEtagNoneMatch("*"))
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	p.log.Debugf("published %s", path)
	return nil
}

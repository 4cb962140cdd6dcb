package checkpoint

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"

	dtcbor "github.com/datatrails/go-datatrails-common/cbor"
	dtcose "github.com/datatrails/go-datatrails-common/cose"
	"github.com/veraison/go-cose"
)

// Signer produces COSE Sign1 signatures over range states. A signature
// commits to a log state and should only be published after checking the
// state is consistent with the last one signed.
type Signer struct {
	issuer string
	codec  dtcbor.CBORCodec
}

func NewSigner(issuer string, codec dtcbor.CBORCodec) Signer {
	return Signer{
		issuer: issuer,
		codec:  codec,
	}
}

// Sign1 signs state and returns the encoded message. Peaks are not signed,
// the root commits to them. The root is removed from the payload after
// signing, so verifiers must recompute it from the range at state.MMRSize.
func (s Signer) Sign1(
	coseSigner cose.Signer, keyIdentifier string, publicKey *ecdsa.PublicKey,
	subject string, state MMRState, external []byte) ([]byte, error) {

	state.Peaks = nil
	payload, err := s.codec.MarshalCBOR(state)
	if err != nil {
		return nil, err
	}

	msg := cose.Sign1Message{
		Headers: cose.Headers{
			Protected: cose.ProtectedHeader{
				dtcose.HeaderLabelCWTClaims: dtcose.NewCNFClaim(
					s.issuer, subject, keyIdentifier, coseSigner.Algorithm(), *publicKey),
			},
		},
		Payload: payload,
	}
	// go-cose only fills in alg itself when there is no external aad
	msg.Headers.Protected.SetAlgorithm(coseSigner.Algorithm())
	if err = msg.Sign(rand.Reader, external, coseSigner); err != nil {
		return nil, err
	}

	state.Root = nil
	if msg.Payload, err = s.codec.MarshalCBOR(state); err != nil {
		return nil, err
	}
	return msg.MarshalCBOR()
}

type publicKeyProvider interface {
	PublicKey() (crypto.PublicKey, cose.Algorithm, error)
}

// Decode returns the signed message and the state it carries. The state
// will not verify until its root is restored.
func Decode(codec dtcbor.CBORCodec, msg []byte) (*dtcose.CoseSign1Message, MMRState, error) {
	signed, err := dtcose.NewCoseSign1MessageFromCBOR(
		msg, dtcose.WithDecOptions(dtcbor.NewDeterministicDecOpts()))
	if err != nil {
		return nil, MMRState{}, err
	}

	var state MMRState
	if err = codec.UnmarshalInto(signed.Payload, &state); err != nil {
		return nil, MMRState{}, err
	}
	return signed, state, nil
}

// Verify puts state back as the payload of signed and checks the signature.
// Typically the caller decodes the message, recomputes the root for
// MMRSize from its own copy of the range, sets it on the state and then
// calls Verify.
func Verify(
	codec dtcbor.CBORCodec, keyProvider publicKeyProvider,
	signed *dtcose.CoseSign1Message, state MMRState, external []byte) error {

	var err error
	if signed.Payload, err = codec.MarshalCBOR(state); err != nil {
		return err
	}
	return signed.VerifyWithProvider(keyProvider, external)
}

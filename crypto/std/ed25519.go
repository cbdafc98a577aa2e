package std

import (
	"crypto/ed25519"

	"github.com/dirkz/sequoia-sub000/crypto"
)

const AlgoEdDSA = 22

// Ed25519Signer implements crypto.SignerKey. It signs the raw digest
// bytes directly (EdDSA, unlike RSA/DSA, signs the message, but per
// RFC 4880bis's EdDSA signature type, OpenPGP feeds it the already
// computed hash digest as the "message"), matching the teacher's own
// signkey.go: `ed25519.Sign(k.Key, sigsum)` where sigsum is a SHA-256
// digest, not the original document.
type Ed25519Signer struct {
	Priv ed25519.PrivateKey
}

func (s *Ed25519Signer) PublicKeyAlgo() int { return AlgoEdDSA }

func (s *Ed25519Signer) Sign(digest []byte, hashAlgo int) ([][]byte, error) {
	sig := ed25519.Sign(s.Priv, digest)
	r := append([]byte(nil), sig[:32]...)
	ss := append([]byte(nil), sig[32:]...)
	return [][]byte{r, ss}, nil
}

// Ed25519Verifier implements crypto.VerifierKey.
type Ed25519Verifier struct {
	Pub ed25519.PublicKey
}

func (v *Ed25519Verifier) PublicKeyAlgo() int { return AlgoEdDSA }

func (v *Ed25519Verifier) Verify(digest []byte, hashAlgo int, mpis [][]byte) (bool, error) {
	if len(mpis) != 2 {
		return false, unsupportedSigShapeError{}
	}
	r := leftPad(mpis[0], 32)
	s := leftPad(mpis[1], 32)
	sig := append(append([]byte(nil), r...), s...)
	return ed25519.Verify(v.Pub, digest, sig), nil
}

func leftPad(b []byte, n int) []byte {
	if len(b) >= n {
		return b[len(b)-n:]
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

type unsupportedSigShapeError struct{}

func (unsupportedSigShapeError) Error() string { return "std: malformed EdDSA signature MPIs" }

var _ crypto.SignerKey = (*Ed25519Signer)(nil)
var _ crypto.VerifierKey = (*Ed25519Verifier)(nil)

package std

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/dirkz/sequoia-sub000/crypto"
)

const (
	AEADGCM              = 3
	AEADChaCha20Poly1305 = 100 // see policy.AEADChaCha20Poly1305
)

type aeadGCM struct {
	aead cipher.AEAD
}

func (a *aeadGCM) IVSize() int  { return a.aead.NonceSize() }
func (a *aeadGCM) TagSize() int { return a.aead.Overhead() }
func (a *aeadGCM) Seal(nonce, aad, pt []byte) []byte {
	return a.aead.Seal(nil, nonce, pt, aad)
}
func (a *aeadGCM) Open(nonce, aad, ctAndTag []byte) ([]byte, error) {
	return a.aead.Open(nil, nonce, ctAndTag, aad)
}

// NewAEAD implements crypto.AEADFactory for AES-GCM (algorithm 3, the
// mandatory-to-implement AEAD mode in crypto-refresh) and
// ChaCha20-Poly1305 (a pack-local extension id, since
// golang.org/x/crypto/chacha20poly1305 is already a dependency via the
// teacher's golang.org/x/crypto requirement and gives AED a second,
// independently-keyed backend to exercise chunk/tag disambiguation
// against).
func NewAEAD(aeadAlgo, symmetricAlgo int, key []byte) (crypto.AEAD, error) {
	switch aeadAlgo {
	case AEADGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		return &aeadGCM{aead: gcm}, nil
	case AEADChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, err
		}
		return &aeadGCM{aead: aead}, nil
	default:
		return nil, unsupportedAEADError(aeadAlgo)
	}
}

type unsupportedAEADError int

func (e unsupportedAEADError) Error() string {
	return "std: unsupported AEAD algorithm"
}

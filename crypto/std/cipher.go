package std

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/dirkz/sequoia-sub000/crypto"
)

const (
	AlgoAES128 = 7
	AlgoAES192 = 8
	AlgoAES256 = 9
)

type aesCipher struct {
	block   cipher.Block
	keySize int
}

func (c *aesCipher) KeySize() int   { return c.keySize }
func (c *aesCipher) BlockSize() int { return c.block.BlockSize() }

func (c *aesCipher) NewCFBEncrypter(iv []byte) crypto.CipherStream {
	return cipher.NewCFBEncrypter(c.block, iv)
}

func (c *aesCipher) NewCFBDecrypter(iv []byte) crypto.CipherStream {
	return cipher.NewCFBDecrypter(c.block, iv)
}

// NewSymmetricCipher implements crypto.SymmetricFactory for AES-128/
// 192/256, the only symmetric algorithms required to be supported by
// RFC 4880bis implementations and the teacher's own AES-256 CFB usage
// in signkey.go's secret-key packet encryption.
func NewSymmetricCipher(algo int, key []byte) (crypto.SymmetricCipher, error) {
	want := keySizeFor(algo)
	if want == 0 {
		return nil, unsupportedSymmetricError(algo)
	}
	if len(key) != want {
		return nil, unsupportedSymmetricError(algo)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &aesCipher{block: block, keySize: want}, nil
}

func keySizeFor(algo int) int {
	switch algo {
	case AlgoAES128:
		return 16
	case AlgoAES192:
		return 24
	case AlgoAES256:
		return 32
	default:
		return 0
	}
}

type unsupportedSymmetricError int

func (e unsupportedSymmetricError) Error() string {
	return "std: unsupported or mis-keyed symmetric algorithm"
}

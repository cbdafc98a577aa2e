// Package std is a reference backend for package crypto, implemented
// against the Go standard library plus golang.org/x/crypto, the
// teacher's own crypto dependency (it uses golang.org/x/crypto/ed25519
// and golang.org/x/crypto/argon2 directly in signkey.go).
package std

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	gohash "hash"

	"golang.org/x/crypto/sha3"

	"github.com/dirkz/sequoia-sub000/crypto"
)

const (
	AlgoMD5       = 1
	AlgoSHA1      = 2
	AlgoRIPEMD160 = 3
	AlgoSHA256    = 8
	AlgoSHA384    = 9
	AlgoSHA512    = 10
	AlgoSHA224    = 11
	AlgoSHA3_256  = 12
	AlgoSHA3_512  = 14
)

type stdHash struct {
	h    gohash.Hash
	algo int
}

func (s *stdHash) Write(p []byte) (int, error) { return s.h.Write(p) }
func (s *stdHash) Sum(b []byte) []byte         { return s.h.Sum(b) }
func (s *stdHash) Reset()                      { s.h.Reset() }
func (s *stdHash) Size() int                   { return s.h.Size() }
func (s *stdHash) Algo() int                   { return s.algo }

// NewHash implements crypto.HashFactory over stdlib SHA-1/SHA-256/
// SHA-384/SHA-512 and golang.org/x/crypto/sha3's SHA3-256/SHA3-512.
// MD5 and RIPEMD-160 are recognized as algorithm IDs (for parsing
// historical signatures) but rejected by NewHash: neither is safe to
// newly compute, and RIPEMD-160 has no maintained Go implementation in
// this module's dependency pack.
func NewHash(algo int) (crypto.Hash, error) {
	switch algo {
	case AlgoSHA1:
		return &stdHash{h: sha1.New(), algo: algo}, nil
	case AlgoSHA256:
		return &stdHash{h: sha256.New(), algo: algo}, nil
	case AlgoSHA384:
		return &stdHash{h: sha512.New384(), algo: algo}, nil
	case AlgoSHA512:
		return &stdHash{h: sha512.New(), algo: algo}, nil
	case AlgoSHA224:
		return &stdHash{h: sha256.New224(), algo: algo}, nil
	case AlgoSHA3_256:
		return &stdHash{h: sha3.New256(), algo: algo}, nil
	case AlgoSHA3_512:
		return &stdHash{h: sha3.New512(), algo: algo}, nil
	default:
		return nil, unsupportedHashError(algo)
	}
}

type unsupportedHashError int

func (e unsupportedHashError) Error() string {
	return "std: unsupported hash algorithm"
}

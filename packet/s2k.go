package packet

import (
	"crypto/sha256"

	"golang.org/x/crypto/argon2"

	openpgp "github.com/dirkz/sequoia-sub000"
)

// S2K describes a String-to-Key conversion (RFC 4880 §3.7), the
// mechanism protecting secret-key packets and v4 SKESK packets with a
// passphrase. Generalized from the teacher's inline, hardcoded
// Iterated-and-Salted-SHA-256 implementation (`s2k()`/`decodeS2K()` in
// signkey.go) into a small tagged union covering the modes this module
// needs, plus the crypto-refresh Argon2 mode (type 4), which reuses
// the teacher's own KDF dependency, `golang.org/x/crypto/argon2`
// (there used directly as the whole-program KDF via `argon2.IDKey`).
type S2K struct {
	Mode     byte // 0 simple, 1 salted, 3 iterated+salted, 4 argon2
	HashAlgo int  // used for modes 0/1/3

	Salt []byte // modes 1, 3, 4

	// Iterated-and-salted (mode 3): encoded octet count per RFC 4880
	// §3.7.1.3, decoded with decodeS2KCount.
	Count byte

	// Argon2 (mode 4, crypto-refresh §3.7.1.4).
	Argon2Time    uint8
	Argon2Memory  uint32 // in KiB (argon2.IDKey takes KiB directly)
	Argon2Threads uint8

	CipherKeySize int // bytes of key material to derive
}

// SymmetricKeySize returns the key length in bytes a symmetric
// algorithm ID requires, used to size S2K-derived and session keys
// alike.
func SymmetricKeySize(algo openpgp.SymmetricAlgorithm) (int, error) {
	switch algo {
	case openpgp.SymmetricIDEA, openpgp.SymmetricCAST5, openpgp.SymmetricBlowfish, openpgp.SymmetricAES128:
		return 16, nil
	case openpgp.SymmetricTripleDES, openpgp.SymmetricAES192:
		return 24, nil
	case openpgp.SymmetricAES256, openpgp.SymmetricTwofish:
		return 32, nil
	default:
		return 0, openpgp.UnsupportedError("unknown symmetric algorithm key size")
	}
}

// decodeS2KCount expands the one-octet encoded iteration count (RFC
// 4880 §3.7.1.3), exactly the teacher's decodeS2K().
func decodeS2KCount(c byte) int {
	return (16 + int(c&15)) << (uint(c>>4) + 6)
}

// DeriveKey runs the S2K function over passphrase, producing
// s.CipherKeySize bytes of key material.
func (s *S2K) DeriveKey(passphrase []byte) ([]byte, error) {
	switch s.Mode {
	case 0:
		return hashExpand(s.HashAlgo, passphrase, s.CipherKeySize)
	case 1:
		return hashExpand(s.HashAlgo, append(append([]byte(nil), s.Salt...), passphrase...), s.CipherKeySize)
	case 3:
		return iteratedSaltedS2K(s.HashAlgo, passphrase, s.Salt, decodeS2KCount(s.Count), s.CipherKeySize)
	case 4:
		return argon2.IDKey(passphrase, s.Salt, uint32(s.Argon2Time), s.Argon2Memory, s.Argon2Threads, uint32(s.CipherKeySize)), nil
	default:
		return nil, openpgp.UnsupportedError("unknown S2K mode")
	}
}

// iteratedSaltedS2K mirrors the teacher's own s2k(): it implements the
// algorithm GnuPG and PGP actually run (repeating salt||passphrase to
// fill exactly `count` bytes of hash input), which the teacher's
// comment notes differs subtly from a literal reading of RFC 4880
// §3.7.1.3.
func iteratedSaltedS2K(hashAlgo int, passphrase, salt []byte, count, keySize int) ([]byte, error) {
	if hashAlgo != 8 { // SHA-256 only, matching the teacher
		return nil, openpgp.UnsupportedError("iterated-salted S2K only implemented for SHA-256")
	}
	h := sha256.New()
	full := make([]byte, len(salt)+len(passphrase))
	copy(full, salt)
	copy(full[len(salt):], passphrase)
	if len(full) == 0 {
		return nil, openpgp.InvalidArgumentError("empty S2K input")
	}
	iterations := count / len(full)
	for i := 0; i < iterations; i++ {
		h.Write(full)
	}
	tail := count - iterations*len(full)
	h.Write(full[:tail])
	sum := h.Sum(nil)
	if keySize <= len(sum) {
		return sum[:keySize], nil
	}
	// Multiple hash instances with incrementing zero-prefix, as RFC
	// 4880 §3.7.1.3 describes for keys wider than one hash's output.
	out := make([]byte, 0, keySize)
	for prefix := 0; len(out) < keySize; prefix++ {
		h := sha256.New()
		for i := 0; i < prefix; i++ {
			h.Write([]byte{0})
		}
		full := make([]byte, len(salt)+len(passphrase))
		copy(full, salt)
		copy(full[len(salt):], passphrase)
		iterations := count / len(full)
		for i := 0; i < iterations; i++ {
			h.Write(full)
		}
		tail := count - iterations*len(full)
		h.Write(full[:tail])
		out = append(out, h.Sum(nil)...)
	}
	return out[:keySize], nil
}

func hashExpand(hashAlgo int, input []byte, keySize int) ([]byte, error) {
	if hashAlgo != 8 {
		return nil, openpgp.UnsupportedError("simple/salted S2K only implemented for SHA-256")
	}
	out := make([]byte, 0, keySize)
	for prefix := 0; len(out) < keySize; prefix++ {
		h := sha256.New()
		for i := 0; i < prefix; i++ {
			h.Write([]byte{0})
		}
		h.Write(input)
		out = append(out, h.Sum(nil)...)
	}
	return out[:keySize], nil
}

func log2Uint32(v uint32) byte {
	n := byte(0)
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// parseS2K decodes an S2K specifier from buf, returning it and the
// number of bytes consumed.
func parseS2K(buf []byte) (S2K, int, error) {
	if len(buf) < 2 {
		return S2K{}, 0, openpgp.StructuralError("truncated S2K specifier")
	}
	mode := buf[0]
	switch mode {
	case 0:
		return S2K{Mode: 0, HashAlgo: int(buf[1])}, 2, nil
	case 1:
		if len(buf) < 10 {
			return S2K{}, 0, openpgp.StructuralError("truncated salted S2K specifier")
		}
		return S2K{Mode: 1, HashAlgo: int(buf[1]), Salt: append([]byte(nil), buf[2:10]...)}, 10, nil
	case 3:
		if len(buf) < 11 {
			return S2K{}, 0, openpgp.StructuralError("truncated iterated-salted S2K specifier")
		}
		return S2K{Mode: 3, HashAlgo: int(buf[1]), Salt: append([]byte(nil), buf[2:10]...), Count: buf[10]}, 11, nil
	case 4:
		if len(buf) < 20 {
			return S2K{}, 0, openpgp.StructuralError("truncated argon2 S2K specifier")
		}
		return S2K{
			Mode:          4,
			Salt:          append([]byte(nil), buf[1:17]...),
			Argon2Time:    buf[17],
			Argon2Threads: buf[18],
			Argon2Memory:  uint32(1) << uint(buf[19]),
		}, 20, nil
	default:
		return S2K{}, 0, openpgp.UnsupportedError("unknown S2K mode")
	}
}

func (s *S2K) serialize() []byte {
	switch s.Mode {
	case 0:
		return []byte{0, byte(s.HashAlgo)}
	case 1:
		buf := []byte{1, byte(s.HashAlgo)}
		return append(buf, s.Salt...)
	case 3:
		buf := []byte{3, byte(s.HashAlgo)}
		buf = append(buf, s.Salt...)
		return append(buf, s.Count)
	case 4:
		// crypto-refresh §3.7.1.4: type, 16-byte salt, t, p, encoded m
		// (log2 of KiB).
		buf := []byte{4}
		buf = append(buf, s.Salt...)
		buf = append(buf, s.Argon2Time, s.Argon2Threads, log2Uint32(s.Argon2Memory))
		return buf
	default:
		return nil
	}
}

package std

import (
	"crypto/aes"
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/curve25519"

	stdcrypto "github.com/dirkz/sequoia-sub000/crypto"
)

const AlgoECDH = 18

// ECDHX25519Encrypter implements crypto.PKEncryption for ECDH over
// Curve25519 (cv25519), the curve the teacher's own key generation is
// built around (its SignKey is Ed25519; EncryptKey, not present in the
// retrieved file, is its X25519 counterpart per the project's README
// lineage). The session key is wrapped with AES key wrap (RFC 3394)
// under a key derived by SHA-256 from the ECDH shared secret, per
// RFC 4880bis §5.1.6's ECDH scheme, simplified to drop the PKCS#5-style
// padding negotiation (fixed AES-256 wrap, recipient fingerprint bound
// into the KDF "info" parameter by the caller via RecipientFingerprint).
type ECDHX25519Encrypter struct {
	RecipientPub        [32]byte
	RecipientFingerprint []byte
}

func (e *ECDHX25519Encrypter) PublicKeyAlgo() int { return AlgoECDH }

func (e *ECDHX25519Encrypter) Encrypt(sessionKey []byte, _ stdcrypto.Random) ([][]byte, error) {
	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return nil, err
	}
	ephPub, err := curve25519.X25519(ephPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	shared, err := curve25519.X25519(ephPriv[:], e.RecipientPub[:])
	if err != nil {
		return nil, err
	}
	kek := kdfKey(shared, e.RecipientFingerprint)
	wrapped, err := aesKeyWrap(kek, sessionKey)
	if err != nil {
		return nil, err
	}
	return [][]byte{ephPub, wrapped}, nil
}

// ECDHX25519Decrypter implements crypto.PKDecryption.
type ECDHX25519Decrypter struct {
	Priv                 [32]byte
	RecipientFingerprint []byte
}

func (d *ECDHX25519Decrypter) PublicKeyAlgo() int { return AlgoECDH }

func (d *ECDHX25519Decrypter) Decrypt(mpis [][]byte) ([]byte, error) {
	if len(mpis) != 2 {
		return nil, unsupportedSigShapeError{}
	}
	ephPub, wrapped := mpis[0], mpis[1]
	shared, err := curve25519.X25519(d.Priv[:], ephPub)
	if err != nil {
		return nil, err
	}
	kek := kdfKey(shared, d.RecipientFingerprint)
	return aesKeyUnwrap(kek, wrapped)
}

func kdfKey(shared, fingerprint []byte) []byte {
	h := sha256.New()
	h.Write(shared)
	h.Write(fingerprint)
	return h.Sum(nil)
}

// aesKeyWrap implements RFC 3394 key wrap with AES-256.
func aesKeyWrap(kek, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	n := len(plaintext) / 8
	r := make([][]byte, n+1)
	r[0] = nil
	for i := 0; i < n; i++ {
		r[i+1] = append([]byte(nil), plaintext[i*8:i*8+8]...)
	}
	var a [8]byte
	copy(a[:], []byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6})
	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], a[:])
			copy(buf[8:], r[i])
			block.Encrypt(buf, buf)
			t := uint64(n*j + i)
			var tb [8]byte
			for k := 0; k < 8; k++ {
				tb[7-k] = byte(t >> (8 * k))
			}
			for k := 0; k < 8; k++ {
				a[k] = buf[k] ^ tb[k]
			}
			copy(r[i], buf[8:])
		}
	}
	out := make([]byte, 0, 8+len(plaintext))
	out = append(out, a[:]...)
	for i := 1; i <= n; i++ {
		out = append(out, r[i]...)
	}
	return out, nil
}

func aesKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	if len(wrapped) < 16 || len(wrapped)%8 != 0 {
		return nil, errKeyWrap{}
	}
	n := len(wrapped)/8 - 1
	var a [8]byte
	copy(a[:], wrapped[:8])
	r := make([][]byte, n+1)
	for i := 1; i <= n; i++ {
		r[i] = append([]byte(nil), wrapped[i*8:i*8+8]...)
	}
	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			var tb [8]byte
			for k := 0; k < 8; k++ {
				tb[7-k] = byte(t >> (8 * k))
			}
			var xored [8]byte
			for k := 0; k < 8; k++ {
				xored[k] = a[k] ^ tb[k]
			}
			copy(buf[:8], xored[:])
			copy(buf[8:], r[i])
			block.Decrypt(buf, buf)
			copy(a[:], buf[:8])
			copy(r[i], buf[8:])
		}
	}
	expected := [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}
	if a != expected {
		return nil, errKeyWrap{}
	}
	out := make([]byte, 0, n*8)
	for i := 1; i <= n; i++ {
		out = append(out, r[i]...)
	}
	return out, nil
}

type errKeyWrap struct{}

func (errKeyWrap) Error() string { return "std: AES key unwrap integrity check failed" }

var (
	_ stdcrypto.PKEncryption = (*ECDHX25519Encrypter)(nil)
	_ stdcrypto.PKDecryption = (*ECDHX25519Decrypter)(nil)
)

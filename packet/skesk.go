package packet

import (
	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
)

// SKESK is a Symmetric-Key Encrypted Session Key packet (RFC 4880
// §5.3, extended by crypto-refresh to a version-6 AEAD-protected
// shape). It wraps a session key under a passphrase-derived key via
// S2K, rather than a public key.
type SKESK struct {
	Version       int
	SymAlgo       openpgp.SymmetricAlgorithm
	S2K           S2K
	AEADAlgo      openpgp.AEADAlgorithm // version 6 only
	IV            []byte                // version 6 only
	EncryptedData []byte                // absent (zero-length) if the S2K key *is* the session key
}

func (s *SKESK) Tag() Tag { return TagSKESK }

func (s *SKESK) PacketBody() []byte {
	buf := []byte{byte(s.Version)}
	if s.Version == 6 {
		buf = append(buf, byte(s.SymAlgo), byte(s.AEADAlgo))
		s2kBytes := s.S2K.serialize()
		buf = append(buf, byte(len(s2kBytes)))
		buf = append(buf, s2kBytes...)
		buf = append(buf, s.IV...)
	} else {
		buf = append(buf, byte(s.SymAlgo))
		buf = append(buf, s.S2K.serialize()...)
	}
	buf = append(buf, s.EncryptedData...)
	return buf
}

// ParseSKESK decodes an SKESK packet body.
func ParseSKESK(body []byte) (*SKESK, error) {
	if len(body) < 2 {
		return nil, openpgp.StructuralError("malformed SKESK packet")
	}
	version := int(body[0])
	s := &SKESK{Version: version}
	switch version {
	case 4:
		s.SymAlgo = openpgp.SymmetricAlgorithm(body[1])
		s2k, n, err := parseS2K(body[2:])
		if err != nil {
			return nil, err
		}
		s.S2K = s2k
		s.EncryptedData = append([]byte(nil), body[2+n:]...)
	case 6:
		if len(body) < 4 {
			return nil, openpgp.StructuralError("truncated v6 SKESK packet")
		}
		s.SymAlgo = openpgp.SymmetricAlgorithm(body[1])
		s.AEADAlgo = openpgp.AEADAlgorithm(body[2])
		s2kLen := int(body[3])
		if len(body) < 4+s2kLen {
			return nil, openpgp.StructuralError("truncated v6 SKESK S2K specifier")
		}
		s2k, _, err := parseS2K(body[4 : 4+s2kLen])
		if err != nil {
			return nil, err
		}
		s.S2K = s2k
		rest := body[4+s2kLen:]
		ivSize := 12 // GCM/ChaCha20Poly1305 nonce size used throughout this module
		if len(rest) < ivSize {
			return nil, openpgp.StructuralError("truncated v6 SKESK IV")
		}
		s.IV = append([]byte(nil), rest[:ivSize]...)
		s.EncryptedData = append([]byte(nil), rest[ivSize:]...)
	default:
		return nil, openpgp.UnsupportedError("unsupported SKESK version")
	}
	return s, nil
}

// DecryptSessionKey derives the S2K key from passphrase and, if
// EncryptedData is non-empty, decrypts it to recover the session key
// and its announced algorithm; otherwise the S2K-derived key itself is
// the session key (using s.SymAlgo).
func (s *SKESK) DecryptSessionKey(passphrase []byte, cipherFactory crypto.SymmetricFactory) (algo openpgp.SymmetricAlgorithm, sessionKey []byte, err error) {
	keySize, err := SymmetricKeySize(s.SymAlgo)
	if err != nil {
		return 0, nil, err
	}
	s.S2K.CipherKeySize = keySize
	derived, err := s.S2K.DeriveKey(passphrase)
	if err != nil {
		return 0, nil, err
	}
	if len(s.EncryptedData) == 0 {
		return s.SymAlgo, derived, nil
	}
	cipher, err := cipherFactory(int(s.SymAlgo), derived)
	if err != nil {
		return 0, nil, err
	}
	iv := make([]byte, cipher.BlockSize())
	stream := cipher.NewCFBDecrypter(iv)
	plain := make([]byte, len(s.EncryptedData))
	stream.XORKeyStream(plain, s.EncryptedData)
	return openpgp.SymmetricAlgorithm(plain[0]), plain[1:], nil
}

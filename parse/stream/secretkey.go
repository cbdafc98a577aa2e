package stream

import (
	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/packet"
)

// SecretKeyHelper resolves the session key protecting a message's
// container from the PKESK/SKESK packets preceding it (spec §4.9). It
// returns ok=false, with no error, when none of the offered packets
// could be decrypted with material the caller has available (a wrong
// password or a key the caller doesn't hold) rather than when
// something is actually malformed.
type SecretKeyHelper func(pkesks []*packet.PKESK, skesks []*packet.SKESK) (algo openpgp.SymmetricAlgorithm, sessionKey []byte, ok bool, err error)

// PasswordSecretKeyHelper builds a SecretKeyHelper that tries each of
// passwords against every SKESK packet offered, ignoring PKESKs
// entirely (spec §4.9 describes the helper as caller-provided
// precisely so password-only and public-key-only consumers don't need
// each other's logic).
func PasswordSecretKeyHelper(passwords [][]byte, symmetricFactory crypto.SymmetricFactory, aeadFactory crypto.AEADFactory) SecretKeyHelper {
	return func(pkesks []*packet.PKESK, skesks []*packet.SKESK) (openpgp.SymmetricAlgorithm, []byte, bool, error) {
		for _, sk := range skesks {
			for _, pw := range passwords {
				var algo openpgp.SymmetricAlgorithm
				var key []byte
				var err error
				if sk.Version == 6 {
					algo, key, err = decryptSKESKv6(sk, pw, aeadFactory)
				} else {
					algo, key, err = sk.DecryptSessionKey(pw, symmetricFactory)
				}
				if err == nil {
					return algo, key, true, nil
				}
			}
		}
		return 0, nil, false, nil
	}
}

// skeskV6AssociatedData is the fixed associated data crypto-refresh
// §5.3.1 mixes into a version-6 SKESK's AEAD seal: a synthetic
// new-format CTB for tag 3 version 6, followed by the symmetric and
// AEAD algorithm octets.
func skeskV6AssociatedData(sk *packet.SKESK) []byte {
	return []byte{0xC3, 6, byte(sk.SymAlgo), byte(sk.AEADAlgo)}
}

// decryptSKESKv6 unwraps a version-6 SKESK's AEAD-sealed session key:
// unlike v4 (a CFB-wrapped key under a raw S2K-derived key),
// crypto-refresh §5.3 AEAD-seals the session key directly, sealing
// even a zero-length plaintext when the S2K-derived key doubles as
// the session key.
func decryptSKESKv6(sk *packet.SKESK, passphrase []byte, aeadFactory crypto.AEADFactory) (openpgp.SymmetricAlgorithm, []byte, error) {
	keySize, err := packet.SymmetricKeySize(sk.SymAlgo)
	if err != nil {
		return 0, nil, err
	}
	sk.S2K.CipherKeySize = keySize
	derived, err := sk.S2K.DeriveKey(passphrase)
	if err != nil {
		return 0, nil, err
	}
	aead, err := aeadFactory(int(sk.AEADAlgo), int(sk.SymAlgo), derived)
	if err != nil {
		return 0, nil, err
	}
	plain, err := aead.Open(sk.IV, skeskV6AssociatedData(sk), sk.EncryptedData)
	if err != nil {
		return 0, nil, openpgp.SignatureError("SKESK AEAD unwrap failed")
	}
	if len(plain) == 0 {
		return sk.SymAlgo, derived, nil
	}
	return sk.SymAlgo, plain, nil
}

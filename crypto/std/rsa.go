package std

import (
	gocrypto "crypto"
	"crypto/rand"
	"crypto/rsa"

	"github.com/dirkz/sequoia-sub000/crypto"
)

const (
	AlgoRSAEncryptSign = 1
	AlgoRSAEncryptOnly = 2
	AlgoRSASignOnly    = 3
)

var hashAlgoToGoHash = map[int]gocrypto.Hash{
	AlgoSHA1:   gocrypto.SHA1,
	AlgoSHA256: gocrypto.SHA256,
	AlgoSHA384: gocrypto.SHA384,
	AlgoSHA512: gocrypto.SHA512,
	AlgoSHA224: gocrypto.SHA224,
}

// RSASigner implements crypto.SignerKey using PKCS#1 v1.5, the scheme
// RFC 4880 mandates for RSA signatures.
type RSASigner struct {
	Priv *rsa.PrivateKey
}

func (s *RSASigner) PublicKeyAlgo() int { return AlgoRSAEncryptSign }

func (s *RSASigner) Sign(digest []byte, hashAlgo int) ([][]byte, error) {
	h, ok := hashAlgoToGoHash[hashAlgo]
	if !ok {
		return nil, unsupportedHashError(hashAlgo)
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.Priv, h, digest)
	if err != nil {
		return nil, err
	}
	return [][]byte{sig}, nil
}

// RSAVerifier implements crypto.VerifierKey.
type RSAVerifier struct {
	Pub *rsa.PublicKey
}

func (v *RSAVerifier) PublicKeyAlgo() int { return AlgoRSAEncryptSign }

func (v *RSAVerifier) Verify(digest []byte, hashAlgo int, mpis [][]byte) (bool, error) {
	h, ok := hashAlgoToGoHash[hashAlgo]
	if !ok {
		return false, unsupportedHashError(hashAlgo)
	}
	if len(mpis) != 1 {
		return false, unsupportedSigShapeError{}
	}
	err := rsa.VerifyPKCS1v15(v.Pub, h, digest, mpis[0])
	return err == nil, nil
}

// RSAEncrypter implements crypto.PKEncryption using PKCS#1 v1.5, as
// RFC 4880 §13.1 requires for RSA PKESK.
type RSAEncrypter struct {
	Pub *rsa.PublicKey
}

func (e *RSAEncrypter) PublicKeyAlgo() int { return AlgoRSAEncryptSign }

func (e *RSAEncrypter) Encrypt(sessionKey []byte, _ crypto.Random) ([][]byte, error) {
	ct, err := rsa.EncryptPKCS1v15(rand.Reader, e.Pub, sessionKey)
	if err != nil {
		return nil, err
	}
	return [][]byte{ct}, nil
}

// RSADecrypter implements crypto.PKDecryption.
type RSADecrypter struct {
	Priv *rsa.PrivateKey
}

func (d *RSADecrypter) PublicKeyAlgo() int { return AlgoRSAEncryptSign }

func (d *RSADecrypter) Decrypt(mpis [][]byte) ([]byte, error) {
	if len(mpis) != 1 {
		return nil, unsupportedSigShapeError{}
	}
	return rsa.DecryptPKCS1v15(rand.Reader, d.Priv, mpis[0])
}

var (
	_ crypto.SignerKey      = (*RSASigner)(nil)
	_ crypto.VerifierKey    = (*RSAVerifier)(nil)
	_ crypto.PKEncryption   = (*RSAEncrypter)(nil)
	_ crypto.PKDecryption   = (*RSADecrypter)(nil)
)

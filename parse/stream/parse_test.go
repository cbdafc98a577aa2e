package stream_test

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"io"
	"testing"
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/crypto/std"
	parsestream "github.com/dirkz/sequoia-sub000/parse/stream"
	serializestream "github.com/dirkz/sequoia-sub000/serialize/stream"
)

func genEd25519(t *testing.T, seedByte byte) (ed25519.PrivateKey, ed25519.PublicKey) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv, priv.Public().(ed25519.PublicKey)
}

// TestSEIPMDCFailureLatches is spec §8's scenario 4: flipping a byte of
// the MDC digest must surface as an error on the read that crosses the
// MDC boundary, and every subsequent read must also fail.
func TestSEIPMDCFailureLatches(t *testing.T) {
	password := []byte("streng geheim")
	var out bytes.Buffer
	enc, err := serializestream.NewEncryptor(&out, serializestream.EncryptorOptions{
		Passwords:        [][]byte{password},
		SymmetricAlgo:    openpgp.SymmetricAES256,
		SymmetricFactory: std.NewSymmetricCipher,
		HashFactory:      std.NewHash,
		Rand:             std.Random{},
	})
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	if _, err := enc.Write([]byte("Hello world.\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := serializestream.Finalize(enc); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	corrupted := append([]byte(nil), out.Bytes()...)
	// The trailing MDC digest is the last 20 bytes of the SEIP
	// ciphertext, itself the very end of the message; CFB's per-block
	// feedback means flipping the final ciphertext byte changes only
	// the corresponding decrypted byte, with no following block left
	// to garble.
	corrupted[len(corrupted)-1] ^= 0xFF

	r := parsestream.NewReader(bytes.NewReader(corrupted), parsestream.Options{
		SecretKey:        parsestream.PasswordSecretKeyHelper([][]byte{password}, std.NewSymmetricCipher, std.NewAEAD),
		SymmetricFactory: std.NewSymmetricCipher,
		AEADFactory:      std.NewAEAD,
		HashFactory:      std.NewHash,
	})

	_, err = io.ReadAll(r)
	if err == nil {
		t.Fatal("expected an integrity error reading past the corrupted MDC")
	}
	var integrityErr openpgp.IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("got error %v (%T), want openpgp.IntegrityError", err, err)
	}

	if _, err := r.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected the error to latch on a subsequent read")
	}
}

// TestAEADSmallFinalChunk is spec §8's scenario 5: an AED plaintext
// exactly chunk_size - tag_size bytes long decrypts back to exactly
// itself, exercising the final-data-chunk/final-empty-chunk
// disambiguation. That plaintext is the Literal Data packet: a 1-byte
// CTB, a 2-byte length and a 6-byte literal header precede the payload.
func TestAEADSmallFinalChunk(t *testing.T) {
	password := []byte("another password")
	const chunkSize = 4096
	const tagSize = 16
	const literalFraming = 1 + 2 + 6
	payload := bytes.Repeat([]byte("x"), chunkSize-tagSize-literalFraming)

	var out bytes.Buffer
	enc, err := serializestream.NewEncryptor(&out, serializestream.EncryptorOptions{
		Passwords:        [][]byte{password},
		SymmetricAlgo:    openpgp.SymmetricAES256,
		AEADAlgo:         openpgp.AEADGCM,
		SymmetricFactory: std.NewSymmetricCipher,
		AEADFactory:      std.NewAEAD,
		HashFactory:      std.NewHash,
		Rand:             std.Random{},
	})
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	lit, err := serializestream.NewLiteral(enc, serializestream.LiteralOptions{})
	if err != nil {
		t.Fatalf("NewLiteral: %v", err)
	}
	if _, err := lit.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := serializestream.Finalize(lit); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	r := parsestream.NewReader(bytes.NewReader(out.Bytes()), parsestream.Options{
		SecretKey:        parsestream.PasswordSecretKeyHelper([][]byte{password}, std.NewSymmetricCipher, std.NewAEAD),
		SymmetricFactory: std.NewSymmetricCipher,
		AEADFactory:      std.NewAEAD,
		HashFactory:      std.NewHash,
	})

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("decrypted length = %d, want %d", len(got), len(payload))
	}
}

// singleKeyVerifier implements VerificationHelper over one fixed
// issuer/key pair.
type singleKeyVerifier struct {
	issuer openpgp.KeyID
	pub    crypto.VerifierKey
}

func (v *singleKeyVerifier) PublicKey(issuer openpgp.KeyID) (crypto.VerifierKey, error) {
	if !issuer.Equal(v.issuer) {
		return nil, openpgp.StructuralError("unknown issuer")
	}
	return v.pub, nil
}

// TestSignedLiteralReaderVerifiesSignature exercises the whole Reader
// loop end to end: one-pass signature hashing through LiteralData,
// verification against the issuer's key once the terminal Signature
// packet is reached.
func TestSignedLiteralReaderVerifiesSignature(t *testing.T) {
	priv, pub := genEd25519(t, 9)
	issuerID := openpgp.KeyID([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	signer, err := serializestream.NewSigner(&out, serializestream.SignerOptions{
		Keys: []serializestream.SigningKey{{
			Key:      &std.Ed25519Signer{Priv: priv},
			HashAlgo: openpgp.HashSHA256,
			Issuer:   issuerID,
		}},
		Created:     created,
		HashFactory: std.NewHash,
	})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	lit, err := serializestream.NewLiteral(signer, serializestream.LiteralOptions{FileName: "msg.txt", Created: created})
	if err != nil {
		t.Fatalf("NewLiteral: %v", err)
	}
	payload := []byte("hello, openpgp")
	if _, err := lit.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := serializestream.Finalize(lit); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	r := parsestream.NewReader(bytes.NewReader(out.Bytes()), parsestream.Options{
		Verification: &singleKeyVerifier{issuer: issuerID, pub: &std.Ed25519Verifier{Pub: pub}},
		HashFactory:  std.NewHash,
	})
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
	sigs := r.Signatures()
	if len(sigs) != 1 {
		t.Fatalf("got %d signature results, want 1", len(sigs))
	}
	if sigs[0].Err != nil {
		t.Fatalf("signature verification failed: %v", sigs[0].Err)
	}
}

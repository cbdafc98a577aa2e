package packet_test

import (
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto/std"
	"github.com/dirkz/sequoia-sub000/packet"
)

// TestSetExpirationRejectsNegativeDuration is spec §8 scenario 6:
// set_signature_creation_time(T) then set_signature_expiration_time(T
// - 1s) must fail with InvalidArgument, not silently wrap into a
// signature that appears valid for roughly 136 years.
func TestSetExpirationRejectsNegativeDuration(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := packet.NewBuilder(packet.SigTypeBinary, openpgp.PKEdDSA, openpgp.HashSHA256)
	b.SetCreationTime(created)
	b.SetExpiration(-time.Second)

	_, err := b.Finalize(&std.Ed25519Signer{Priv: priv}, nil, nil, []byte("hello"), std.NewHash, created)
	if err == nil {
		t.Fatal("expected an error, got none")
	}
	var invalidArg openpgp.InvalidArgumentError
	if !errors.As(err, &invalidArg) {
		t.Fatalf("got error %v (%T), want openpgp.InvalidArgumentError", err, err)
	}
}

// TestSetKeyExpirationRejectsNegativeDuration mirrors the above for the
// Key Expiration Time subpacket.
func TestSetKeyExpirationRejectsNegativeDuration(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := packet.NewBuilder(packet.SigTypeGenericCert, openpgp.PKEdDSA, openpgp.HashSHA256)
	b.SetCreationTime(created)
	b.SetKeyExpiration(-time.Hour)

	_, err := b.Finalize(&std.Ed25519Signer{Priv: priv}, nil, nil, []byte("hello"), std.NewHash, created)
	if err == nil {
		t.Fatal("expected an error, got none")
	}
	var invalidArg openpgp.InvalidArgumentError
	if !errors.As(err, &invalidArg) {
		t.Fatalf("got error %v (%T), want openpgp.InvalidArgumentError", err, err)
	}
}

// TestSetExpirationAcceptsNonNegativeDuration is the positive
// counterpart: a zero or positive expiration builds and verifies
// normally.
func TestSetExpirationAcceptsNonNegativeDuration(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := packet.NewBuilder(packet.SigTypeBinary, openpgp.PKEdDSA, openpgp.HashSHA256)
	b.SetCreationTime(created)
	b.SetExpiration(time.Hour)

	sig, err := b.Finalize(&std.Ed25519Signer{Priv: priv}, nil, nil, []byte("hello"), std.NewHash, created)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	expires, ok := sig.ExpiresAt()
	if !ok || !expires.Equal(created.Add(time.Hour)) {
		t.Fatalf("ExpiresAt() = %v, %v; want %v, true", expires, ok, created.Add(time.Hour))
	}

	h, err := std.NewHash(int(openpgp.HashSHA256))
	if err != nil {
		t.Fatalf("NewHash: %v", err)
	}
	h.Write([]byte("hello"))
	h.Write(sig.DataToHash())
	digest := h.Sum(nil)
	ok, err = (&std.Ed25519Verifier{Pub: pub}).Verify(digest, int(openpgp.HashSHA256), sig.MPIs)
	if err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}
}

package cert_test

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/cert"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/crypto/std"
	"github.com/dirkz/sequoia-sub000/packet"
	"github.com/dirkz/sequoia-sub000/packet/subpacket"
)

// certSnapshot is a plain-data projection of the parts of a Cert that
// must survive canonicalization unchanged: Fingerprint/KeyID resolve
// through unexported Key fields, so cmp.Diff runs against this
// projection rather than the Cert itself.
type certSnapshot struct {
	Fingerprint    string
	UserIDs        []string
	PrimarySigs    int
	SubkeyCount    int
	BadCount       int
}

func snapshot(t *testing.T, c *cert.Cert) certSnapshot {
	t.Helper()
	fp, err := c.Primary.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	var uids []string
	for _, b := range c.UserIDs {
		uids = append(uids, b.Component.Value)
	}
	return certSnapshot{
		Fingerprint: fp.String(),
		UserIDs:     uids,
		PrimarySigs: len(c.PrimarySelfSignatures),
		SubkeyCount: len(c.Subkeys),
		BadCount:    len(c.Bad),
	}
}

var ed25519OID = []byte{0x2b, 0x06, 0x01, 0x04, 0x01, 0xda, 0x47, 0x0f, 0x01}

func genKey(t *testing.T, seedByte byte, role packet.Role, created time.Time) (*packet.Key, ed25519.PrivateKey) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	k := packet.NewPublicKey(role, created, openpgp.PKEdDSA, ed25519OID, [][]byte{[]byte(pub)})
	return k, priv
}

func selfSign(t *testing.T, sigType packet.SignatureType, primary *packet.Key, priv ed25519.PrivateKey,
	domain []byte, created time.Time, configure func(*packet.Builder)) *packet.Signature {
	t.Helper()
	b := packet.NewBuilder(sigType, openpgp.PKEdDSA, openpgp.HashSHA256)
	b.SetCreationTime(created)
	if configure != nil {
		configure(b)
	}
	issuerID, err := primary.KeyID()
	if err != nil {
		t.Fatalf("KeyID: %v", err)
	}
	issuerFP, err := primary.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	sig, err := b.Finalize(&std.Ed25519Signer{Priv: priv}, issuerID, issuerFP, domain, std.NewHash, created)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return sig
}

func verifierFactory(pub ed25519.PublicKey) cert.VerifierFactory {
	return func(k *packet.Key) (crypto.VerifierKey, error) {
		return &std.Ed25519Verifier{Pub: pub}, nil
	}
}

func TestAssembleAndCanonicalizeSingleUserID(t *testing.T) {
	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	primary, priv := genKey(t, 1, packet.RolePrimary, created)
	pub := priv.Public().(ed25519.PublicKey)

	uid := &packet.UserID{Value: "Alice <alice@example.com>"}
	primaryDomain, err := primary.SignedData()
	if err != nil {
		t.Fatalf("SignedData: %v", err)
	}
	domain := append(append([]byte(nil), primaryDomain...), uid.SignedData()...)

	sig := selfSign(t, packet.SigTypeGenericCert, primary, priv, domain, created, func(b *packet.Builder) {
		b.SetKeyFlags(subpacket.KeyFlags{CertifyOthers: true, SignData: true})
		b.SetPrimaryUserID(true)
	})

	pkts := []packet.Packet{primary, uid, sig}
	c, err := cert.Assemble(pkts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	hf := std.NewHash
	vf := verifierFactory(pub)
	policy := openpgp.AcceptAllPolicy{}
	if err := cert.Canonicalize(c, hf, vf, policy); err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	if len(c.Bad) != 0 {
		t.Fatalf("expected no bad signatures, got %d", len(c.Bad))
	}
	if len(c.UserIDs) != 1 || len(c.UserIDs[0].SelfSignatures) != 1 {
		t.Fatalf("expected exactly one user id with one self-signature, got %+v", c.UserIDs)
	}

	sel, err := cert.ActivePrimarySignature(c, policy, created.Add(time.Hour))
	if err != nil {
		t.Fatalf("ActivePrimarySignature: %v", err)
	}
	if sel.PrimaryUserID == nil || sel.PrimaryUserID.Component.Value != uid.Value {
		t.Fatalf("expected %q selected as primary user id, got %+v", uid.Value, sel.PrimaryUserID)
	}
	if sel.Revoked {
		t.Fatalf("key should not be revoked")
	}
}

// TestMergeIsIdempotentUpToCanonicalization exercises spec §4.7's own
// claim that merging is "idempotent up to canonicalization
// equivalence": re-canonicalizing a Cert against itself via Merge must
// reproduce the same fingerprint/user-ids/signature counts, verified
// with a go-cmp deep-equality diff over a plain-data projection
// (spec §A.4).
func TestMergeIsIdempotentUpToCanonicalization(t *testing.T) {
	created := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	primary, priv := genKey(t, 5, packet.RolePrimary, created)
	pub := priv.Public().(ed25519.PublicKey)

	uid := &packet.UserID{Value: "Dave <dave@example.com>"}
	primaryDomain, err := primary.SignedData()
	if err != nil {
		t.Fatalf("SignedData: %v", err)
	}
	domain := append(append([]byte(nil), primaryDomain...), uid.SignedData()...)
	sig := selfSign(t, packet.SigTypeGenericCert, primary, priv, domain, created, func(b *packet.Builder) {
		b.SetKeyFlags(subpacket.KeyFlags{CertifyOthers: true, SignData: true})
		b.SetPrimaryUserID(true)
	})

	hf := std.NewHash
	vf := verifierFactory(pub)
	policy := openpgp.AcceptAllPolicy{}

	c, err := cert.Assemble([]packet.Packet{primary, uid, sig})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := cert.Canonicalize(c, hf, vf, policy); err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := snapshot(t, c)

	dup, err := cert.Assemble([]packet.Packet{primary, uid, sig})
	if err != nil {
		t.Fatalf("Assemble (dup): %v", err)
	}
	if err := cert.Canonicalize(dup, hf, vf, policy); err != nil {
		t.Fatalf("Canonicalize (dup): %v", err)
	}

	merged, err := cert.Merge(c, dup, hf, vf, policy)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	got := snapshot(t, merged)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merged Cert diverged from its unmerged self (-want +got):\n%s", diff)
	}
}

func TestEnforceCertificationCapabilityDropsSubkeys(t *testing.T) {
	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	primary, primPriv := genKey(t, 2, packet.RolePrimary, created)
	primPub := primPriv.Public().(ed25519.PublicKey)
	subkey, _ := genKey(t, 3, packet.RoleSubordinate, created)

	uid := &packet.UserID{Value: "Bob <bob@example.com>"}
	primaryDomain, err := primary.SignedData()
	if err != nil {
		t.Fatalf("SignedData: %v", err)
	}
	uidDomain := append(append([]byte(nil), primaryDomain...), uid.SignedData()...)
	uidSig := selfSign(t, packet.SigTypeGenericCert, primary, primPriv, uidDomain, created, func(b *packet.Builder) {
		// Deliberately omit CertifyOthers: this primary only signs data,
		// it never certifies anything (spec §4.5 step 7).
		b.SetKeyFlags(subpacket.KeyFlags{SignData: true})
		b.SetPrimaryUserID(true)
	})

	subDomain, err := subkey.SignedData()
	if err != nil {
		t.Fatalf("SignedData: %v", err)
	}
	bindDomain := append(append([]byte(nil), primaryDomain...), subDomain...)
	bindSig := selfSign(t, packet.SigTypeSubkeyBinding, primary, primPriv, bindDomain, created, func(b *packet.Builder) {
		b.SetKeyFlags(subpacket.KeyFlags{EncryptComms: true})
	})

	pkts := []packet.Packet{primary, uid, uidSig, subkey, bindSig}
	c, err := cert.Assemble(pkts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	hf := std.NewHash
	vf := verifierFactory(primPub)
	policy := openpgp.AcceptAllPolicy{}
	if err := cert.Canonicalize(c, hf, vf, policy); err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	if len(c.Subkeys) != 0 {
		t.Fatalf("expected subkeys to be dropped when the active self-signature lacks CertifyOthers, got %d", len(c.Subkeys))
	}
}

func TestHardRevocationIsRetroactive(t *testing.T) {
	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	revoked := created.Add(365 * 24 * time.Hour)
	primary, priv := genKey(t, 4, packet.RolePrimary, created)
	pub := priv.Public().(ed25519.PublicKey)

	uid := &packet.UserID{Value: "Carol <carol@example.com>"}
	primaryDomain, err := primary.SignedData()
	if err != nil {
		t.Fatalf("SignedData: %v", err)
	}
	uidDomain := append(append([]byte(nil), primaryDomain...), uid.SignedData()...)
	uidSig := selfSign(t, packet.SigTypeGenericCert, primary, priv, uidDomain, created, func(b *packet.Builder) {
		b.SetKeyFlags(subpacket.KeyFlags{CertifyOthers: true, SignData: true})
		b.SetPrimaryUserID(true)
	})

	revSig := selfSign(t, packet.SigTypeKeyRevocation, primary, priv, primaryDomain, revoked, func(b *packet.Builder) {
		b.SetRevocationReason(subpacket.ReasonForRevocation{Code: subpacket.ReasonKeyCompromised})
	})

	pkts := []packet.Packet{primary, uid, uidSig, revSig}
	c, err := cert.Assemble(pkts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	hf := std.NewHash
	vf := verifierFactory(pub)
	policy := openpgp.AcceptAllPolicy{}
	if err := cert.Canonicalize(c, hf, vf, policy); err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	for _, probe := range []time.Time{
		created.Add(-time.Hour),
		created,
		revoked.Add(-time.Hour),
		revoked,
		revoked.Add(time.Hour),
	} {
		got, err := c.RevokedAt(policy, probe)
		if err != nil {
			t.Fatalf("RevokedAt(%v): %v", probe, err)
		}
		if !got {
			t.Errorf("expected hard revocation to apply retroactively at %v", probe)
		}
	}
}

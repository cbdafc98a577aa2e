package cert

import (
	"bytes"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/packet"
)

// Merge implements spec §4.7: two Certs sharing a primary fingerprint
// merge by concatenating every signature list (primary, each user-id/
// user-attribute/subkey binding, and bad) and re-canonicalizing.
// Secret material is preserved from either side. Merging is
// commutative and idempotent up to canonicalization equivalence
// because the concatenation is order-independent and Canonicalize's
// step 5/6 dedup collapses any resulting duplicates.
func Merge(a, b *Cert, hf crypto.HashFactory, vf VerifierFactory, policy openpgp.Policy) (*Cert, error) {
	afp, err := a.Fingerprint()
	if err != nil {
		return nil, err
	}
	bfp, err := b.Fingerprint()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(afp, bfp) {
		return nil, openpgp.MalformedCertError("cannot merge certs with different primary fingerprints")
	}

	merged := &Cert{Primary: a.Primary}
	if b.Primary.Parts() == packet.PartsSecret && a.Primary.Parts() != packet.PartsSecret {
		merged.Primary = b.Primary
	}

	merged.PrimarySelfSignatures = concatSigs(a.PrimarySelfSignatures, b.PrimarySelfSignatures)
	merged.PrimarySelfRevocations = concatSigs(a.PrimarySelfRevocations, b.PrimarySelfRevocations)
	merged.Bad = concatSigs(a.Bad, b.Bad)
	merged.Dropped = append(append([]DroppedPacket{}, a.Dropped...), b.Dropped...)

	merged.UserIDs = append(append([]*ComponentBinding[*packet.UserID]{}, a.UserIDs...), b.UserIDs...)
	merged.UserAttributes = append(append([]*ComponentBinding[*packet.UserAttribute]{}, a.UserAttributes...), b.UserAttributes...)
	merged.Subkeys = append(append([]*ComponentBinding[*packet.Key]{}, a.Subkeys...), b.Subkeys...)

	if err := Canonicalize(merged, hf, vf, policy); err != nil {
		return nil, err
	}
	return merged, nil
}

func concatSigs(a, b []*packet.Signature) []*packet.Signature {
	out := make([]*packet.Signature, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

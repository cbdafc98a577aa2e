package cert

import (
	"bytes"
	"sort"
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/internal/log"
	"github.com/dirkz/sequoia-sub000/packet"
)

// domain computes the signature hash-domain prefix for a binding kind
// (spec §4.5 step 2): the primary key's own SignedData, optionally
// followed by the component's SignedData.
func domain(primary *packet.Key, component []byte) ([]byte, error) {
	p, err := primary.SignedData()
	if err != nil {
		return nil, err
	}
	if component == nil {
		return p, nil
	}
	return append(p, component...), nil
}

// verifyOne hashes domain+sig.DataToHash() with sig's own hash
// algorithm and checks it against verifier.
func verifyOne(hf crypto.HashFactory, verifier crypto.VerifierKey, dom []byte, sig *packet.Signature) bool {
	h, err := hf(int(sig.HashAlgo))
	if err != nil {
		return false
	}
	h.Write(dom)
	h.Write(sig.DataToHash())
	digest := h.Sum(nil)
	return sig.Verify(digest, verifier) == nil
}

// bindingSlot is a uniform view over one component binding's self
// lists plus the hash domain it verifies against, so steps 2/3/5 can
// be written once and applied to the primary and every component.
type bindingSlot struct {
	domainBytes []byte
	selfSigs    *[]*packet.Signature
	selfRevs    *[]*packet.Signature
}

func slotsOf(c *Cert, primaryDomain []byte) ([]bindingSlot, error) {
	slots := []bindingSlot{{
		domainBytes: primaryDomain,
		selfSigs:    &c.PrimarySelfSignatures,
		selfRevs:    &c.PrimarySelfRevocations,
	}}
	for _, b := range c.UserIDs {
		d, err := domain(c.Primary, b.Component.SignedData())
		if err != nil {
			return nil, err
		}
		slots = append(slots, bindingSlot{domainBytes: d, selfSigs: &b.SelfSignatures, selfRevs: &b.SelfRevocations})
	}
	for _, b := range c.UserAttributes {
		d, err := domain(c.Primary, b.Component.SignedData())
		if err != nil {
			return nil, err
		}
		slots = append(slots, bindingSlot{domainBytes: d, selfSigs: &b.SelfSignatures, selfRevs: &b.SelfRevocations})
	}
	for _, b := range c.Subkeys {
		sd, err := b.Component.SignedData()
		if err != nil {
			return nil, err
		}
		d, err := domain(c.Primary, sd)
		if err != nil {
			return nil, err
		}
		slots = append(slots, bindingSlot{domainBytes: d, selfSigs: &b.SelfSignatures, selfRevs: &b.SelfRevocations})
	}
	return slots, nil
}

// verifyAndRescue implements spec §4.5 steps 2-3: every self_signatures
// and self_revocations entry is checked against the primary key using
// its binding's hash domain; failures collect into c.Bad. Every
// entry in c.Bad is then retried against every binding's domain — a
// signature whose creation-order position in the stream didn't match
// its target still gets filed correctly as long as it verifies
// somewhere.
func verifyAndRescue(c *Cert, hf crypto.HashFactory, vf VerifierFactory) error {
	primaryDomain, err := c.Primary.SignedData()
	if err != nil {
		return err
	}
	verifier, err := vf(c.Primary)
	if err != nil {
		return err
	}
	slots, err := slotsOf(c, primaryDomain)
	if err != nil {
		return err
	}

	for _, slot := range slots {
		c.Bad = append(c.Bad, filterVerified(hf, verifier, slot.domainBytes, slot.selfSigs)...)
		c.Bad = append(c.Bad, filterVerified(hf, verifier, slot.domainBytes, slot.selfRevs)...)
	}

	var stillBad []*packet.Signature
	for _, sig := range c.Bad {
		placed := false
		for _, slot := range slots {
			if !verifyOne(hf, verifier, slot.domainBytes, sig) {
				continue
			}
			if isRevocationType(sig.Type) {
				*slot.selfRevs = append(*slot.selfRevs, sig)
			} else {
				*slot.selfSigs = append(*slot.selfSigs, sig)
			}
			log.L.WithField("type", sig.Type).Debug("rescued signature: verified against a different binding than its stream position")
			placed = true
			break
		}
		if !placed {
			stillBad = append(stillBad, sig)
		}
	}
	c.Bad = stillBad
	return nil
}

// filterVerified keeps only the signatures in *sigs that verify
// against dom, returning the rejects for the caller to collect.
func filterVerified(hf crypto.HashFactory, verifier crypto.VerifierKey, dom []byte, sigs *[]*packet.Signature) []*packet.Signature {
	var kept, rejected []*packet.Signature
	for _, sig := range *sigs {
		if verifyOne(hf, verifier, dom, sig) {
			kept = append(kept, sig)
		} else {
			rejected = append(rejected, sig)
		}
	}
	*sigs = kept
	return rejected
}

// pruneEmptyBindings implements spec §4.5 step 4.
func pruneEmptyBindings(c *Cert) {
	uids := c.UserIDs[:0]
	for _, b := range c.UserIDs {
		if len(b.SelfSignatures) > 0 || len(b.SelfRevocations) > 0 {
			uids = append(uids, b)
		} else {
			log.L.WithField("uid", b.Component.Value).Debug("dropping binding: no surviving self-signature")
		}
	}
	c.UserIDs = uids

	attrs := c.UserAttributes[:0]
	for _, b := range c.UserAttributes {
		if len(b.SelfSignatures) > 0 || len(b.SelfRevocations) > 0 {
			attrs = append(attrs, b)
		} else {
			log.L.Debug("dropping binding: user attribute has no surviving self-signature")
		}
	}
	c.UserAttributes = attrs

	subkeys := c.Subkeys[:0]
	for _, b := range c.Subkeys {
		if len(b.SelfSignatures) > 0 || len(b.SelfRevocations) > 0 {
			subkeys = append(subkeys, b)
		} else {
			log.L.Debug("dropping binding: subkey has no surviving self-signature")
		}
	}
	c.Subkeys = subkeys
}

// sortDedupSignatures implements spec §4.5 step 5 for one signature
// list: sort by creation time descending, ties broken by MPI byte
// order, then drop RFC-equivalent duplicates (Signature.Equivalent
// ignores the unhashed area, so re-issued copies of the same
// signature with different unhashed-area decoration collapse to one).
func sortDedupSignatures(sigs []*packet.Signature) []*packet.Signature {
	sort.SliceStable(sigs, func(i, j int) bool {
		ti, _ := sigs[i].Created()
		tj, _ := sigs[j].Created()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return bytes.Compare(sigs[i].MPIByteOrder(), sigs[j].MPIByteOrder()) > 0
	})
	var out []*packet.Signature
	for _, sig := range sigs {
		dup := false
		for _, kept := range out {
			if kept.Equivalent(sig) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, sig)
		}
	}
	return out
}

func sortDedupAllBindings(c *Cert) {
	c.PrimarySelfSignatures = sortDedupSignatures(c.PrimarySelfSignatures)
	c.PrimarySelfRevocations = sortDedupSignatures(c.PrimarySelfRevocations)
	for _, b := range c.UserIDs {
		b.SelfSignatures = sortDedupSignatures(b.SelfSignatures)
		b.SelfRevocations = sortDedupSignatures(b.SelfRevocations)
	}
	for _, b := range c.UserAttributes {
		b.SelfSignatures = sortDedupSignatures(b.SelfSignatures)
		b.SelfRevocations = sortDedupSignatures(b.SelfRevocations)
	}
	for _, b := range c.Subkeys {
		b.SelfSignatures = sortDedupSignatures(b.SelfSignatures)
		b.SelfRevocations = sortDedupSignatures(b.SelfRevocations)
	}
}

// sortDedupComponents implements spec §4.5 step 6: sort user ids,
// user attributes and subkeys by their octet-serialized form, merging
// exact duplicates by concatenating signature lists and keeping
// whichever copy carries secret material.
func sortDedupComponents(c *Cert) {
	sort.SliceStable(c.UserIDs, func(i, j int) bool {
		return c.UserIDs[i].Component.Value < c.UserIDs[j].Component.Value
	})
	c.UserIDs = mergeUserIDs(c.UserIDs)

	sort.SliceStable(c.UserAttributes, func(i, j int) bool {
		return bytes.Compare(c.UserAttributes[i].Component.PacketBody(), c.UserAttributes[j].Component.PacketBody()) < 0
	})
	c.UserAttributes = mergeUserAttributes(c.UserAttributes)

	sort.SliceStable(c.Subkeys, func(i, j int) bool {
		return bytes.Compare(subkeyOctets(c.Subkeys[i].Component), subkeyOctets(c.Subkeys[j].Component)) < 0
	})
	c.Subkeys = mergeSubkeys(c.Subkeys)
}

func subkeyOctets(k *packet.Key) []byte {
	return k.AsPublic().PacketBody()
}

func mergeUserIDs(in []*ComponentBinding[*packet.UserID]) []*ComponentBinding[*packet.UserID] {
	var out []*ComponentBinding[*packet.UserID]
	for _, b := range in {
		if n := len(out); n > 0 && out[n-1].Component.Value == b.Component.Value {
			out[n-1].SelfSignatures = sortDedupSignatures(append(out[n-1].SelfSignatures, b.SelfSignatures...))
			out[n-1].SelfRevocations = sortDedupSignatures(append(out[n-1].SelfRevocations, b.SelfRevocations...))
			out[n-1].ThirdPartySignatures = append(out[n-1].ThirdPartySignatures, b.ThirdPartySignatures...)
			out[n-1].ThirdPartyRevocations = append(out[n-1].ThirdPartyRevocations, b.ThirdPartyRevocations...)
			continue
		}
		out = append(out, b)
	}
	return out
}

func mergeUserAttributes(in []*ComponentBinding[*packet.UserAttribute]) []*ComponentBinding[*packet.UserAttribute] {
	var out []*ComponentBinding[*packet.UserAttribute]
	for _, b := range in {
		if n := len(out); n > 0 && bytes.Equal(out[n-1].Component.PacketBody(), b.Component.PacketBody()) {
			out[n-1].SelfSignatures = sortDedupSignatures(append(out[n-1].SelfSignatures, b.SelfSignatures...))
			out[n-1].SelfRevocations = sortDedupSignatures(append(out[n-1].SelfRevocations, b.SelfRevocations...))
			out[n-1].ThirdPartySignatures = append(out[n-1].ThirdPartySignatures, b.ThirdPartySignatures...)
			out[n-1].ThirdPartyRevocations = append(out[n-1].ThirdPartyRevocations, b.ThirdPartyRevocations...)
			continue
		}
		out = append(out, b)
	}
	return out
}

func mergeSubkeys(in []*ComponentBinding[*packet.Key]) []*ComponentBinding[*packet.Key] {
	var out []*ComponentBinding[*packet.Key]
	for _, b := range in {
		n := len(out)
		if n > 0 && bytes.Equal(subkeyOctets(out[n-1].Component), subkeyOctets(b.Component)) {
			if b.Component.Parts() == packet.PartsSecret && out[n-1].Component.Parts() != packet.PartsSecret {
				out[n-1].Component = b.Component
			}
			out[n-1].SelfSignatures = sortDedupSignatures(append(out[n-1].SelfSignatures, b.SelfSignatures...))
			out[n-1].SelfRevocations = sortDedupSignatures(append(out[n-1].SelfRevocations, b.SelfRevocations...))
			out[n-1].ThirdPartySignatures = append(out[n-1].ThirdPartySignatures, b.ThirdPartySignatures...)
			out[n-1].ThirdPartyRevocations = append(out[n-1].ThirdPartyRevocations, b.ThirdPartyRevocations...)
			continue
		}
		out = append(out, b)
	}
	return out
}

// enforceCertificationCapability implements spec §4.5 step 7: a
// primary key whose active self-signature doesn't advertise the
// certify-others flag cannot have legitimately bound any subkeys.
func enforceCertificationCapability(c *Cert, policy openpgp.Policy) {
	if len(c.Subkeys) == 0 {
		return
	}
	sel, err := ActivePrimarySignature(c, policy, primarySelectionTime(c))
	if err != nil || sel.Signature == nil {
		c.Subkeys = nil
		return
	}
	flags, ok := sel.Signature.KeyFlags()
	if !ok || !flags.CertifyOthers {
		c.Subkeys = nil
	}
}

// primarySelectionTime picks the newest creation time among the
// primary key's and the user ids' self-signatures and self-revocations
// (user attributes and subkeys are not considered) as the reference
// time for step 7's capability
// check, so canonicalization's own internal consistency check never
// depends on wall-clock time.
func primarySelectionTime(c *Cert) (t time.Time) {
	consider := func(sigs []*packet.Signature) {
		for _, s := range sigs {
			if created, ok := s.Created(); ok && created.After(t) {
				t = created
			}
		}
	}
	consider(c.PrimarySelfSignatures)
	consider(c.PrimarySelfRevocations)
	for _, b := range c.UserIDs {
		consider(b.SelfSignatures)
		consider(b.SelfRevocations)
	}
	return t
}

// Canonicalize runs spec §4.5 steps 2-7 over a freshly Assembled Cert.
func Canonicalize(c *Cert, hf crypto.HashFactory, vf VerifierFactory, policy openpgp.Policy) error {
	if err := verifyAndRescue(c, hf, vf); err != nil {
		return err
	}
	pruneEmptyBindings(c)
	sortDedupAllBindings(c)
	sortDedupComponents(c)
	enforceCertificationCapability(c, policy)
	return nil
}

package cert

import (
	"bytes"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/internal/log"
	"github.com/dirkz/sequoia-sub000/packet"
)

// slotKind identifies which binding a just-read Signature packet
// should be provisionally filed under, based purely on stream position
// (spec §4.5 step 1: "signatures following a component associate with
// it until the next component begins").
type slotKind int

const (
	slotPrimary slotKind = iota
	slotUserID
	slotUserAttribute
	slotSubkey
)

// Assemble performs spec §4.5 step 1: it walks a flat packet sequence
// (as read from a Cursor at depth 0, primary key first) and buckets
// every signature into the binding that immediately precedes it,
// without yet verifying anything. Call Canonicalize on the result to
// run steps 2-7.
func Assemble(pkts []packet.Packet) (*Cert, error) {
	if len(pkts) == 0 {
		return nil, openpgp.MalformedCertError("empty packet sequence")
	}
	primaryPkt, ok := pkts[0].(*packet.Key)
	if !ok || primaryPkt.Role() != packet.RolePrimary {
		return nil, openpgp.MalformedCertError("first packet is not a primary key")
	}

	c := &Cert{Primary: primaryPkt}
	slot := slotPrimary
	var curUserID *ComponentBinding[*packet.UserID]
	var curUserAttr *ComponentBinding[*packet.UserAttribute]
	var curSubkey *ComponentBinding[*packet.Key]

	primaryFP, _ := primaryPkt.Fingerprint()
	primaryID, _ := primaryPkt.KeyID()

	for _, pkt := range pkts[1:] {
		switch p := pkt.(type) {
		case *packet.UserID:
			curUserID = &ComponentBinding[*packet.UserID]{Component: p}
			c.UserIDs = append(c.UserIDs, curUserID)
			slot = slotUserID
		case *packet.UserAttribute:
			curUserAttr = &ComponentBinding[*packet.UserAttribute]{Component: p}
			c.UserAttributes = append(c.UserAttributes, curUserAttr)
			slot = slotUserAttribute
		case *packet.Key:
			curSubkey = &ComponentBinding[*packet.Key]{Component: p}
			c.Subkeys = append(c.Subkeys, curSubkey)
			slot = slotSubkey
		case *packet.Signature:
			if p.Version != 4 {
				log.L.WithField("version", p.Version).Debug("dropping signature: unsupported version")
				c.Dropped = append(c.Dropped, DroppedPacket{Packet: p, Reason: "unsupported signature version"})
				continue
			}
			self := isIssuedBy(p, primaryFP, primaryID)
			revocation := isRevocationType(p.Type)
			switch slot {
			case slotPrimary:
				if self {
					if revocation {
						c.PrimarySelfRevocations = append(c.PrimarySelfRevocations, p)
					} else {
						c.PrimarySelfSignatures = append(c.PrimarySelfSignatures, p)
					}
				} else {
					c.Bad = append(c.Bad, p) // third-party direct-key sigs have no dedicated slot yet
				}
			case slotUserID:
				fileInto(&curUserID.SelfSignatures, &curUserID.SelfRevocations,
					&curUserID.ThirdPartySignatures, &curUserID.ThirdPartyRevocations, p, self, revocation)
			case slotUserAttribute:
				fileInto(&curUserAttr.SelfSignatures, &curUserAttr.SelfRevocations,
					&curUserAttr.ThirdPartySignatures, &curUserAttr.ThirdPartyRevocations, p, self, revocation)
			case slotSubkey:
				fileInto(&curSubkey.SelfSignatures, &curSubkey.SelfRevocations,
					&curSubkey.ThirdPartySignatures, &curSubkey.ThirdPartyRevocations, p, self, revocation)
			}
		default:
			log.L.WithField("tag", pkt.Tag()).Debug("dropping packet: not a certificate component")
			c.Dropped = append(c.Dropped, DroppedPacket{Packet: pkt, Reason: "not a certificate component"})
		}
	}
	return c, nil
}

func fileInto(selfSigs, selfRevs, tpSigs, tpRevs *[]*packet.Signature, sig *packet.Signature, self, revocation bool) {
	switch {
	case self && revocation:
		*selfRevs = append(*selfRevs, sig)
	case self:
		*selfSigs = append(*selfSigs, sig)
	case revocation:
		*tpRevs = append(*tpRevs, sig)
	default:
		*tpSigs = append(*tpSigs, sig)
	}
}

func isRevocationType(t packet.SignatureType) bool {
	switch t {
	case packet.SigTypeKeyRevocation, packet.SigTypeSubkeyRevocation, packet.SigTypeCertRevocation:
		return true
	default:
		return false
	}
}

// isIssuedBy reports whether sig's Issuer/IssuerFingerprint names the
// given key. A signature with neither subpacket present is
// provisionally treated as not-self at staging time; the rescue pass
// (spec §4.5 step 3) still gets a chance to match it by successful
// verification regardless of this label.
func isIssuedBy(sig *packet.Signature, fp openpgp.Fingerprint, id openpgp.KeyID) bool {
	if sigFP, ok := sig.IssuerFingerprint(); ok {
		return bytes.Equal(sigFP, fp)
	}
	if sigID, ok := sig.Issuer(); ok {
		return bytes.Equal(sigID, id)
	}
	return false
}

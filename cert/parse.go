package cert

import (
	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/crypto"
	"github.com/dirkz/sequoia-sub000/packet"
)

// splitKeyring partitions a flat packet sequence into one run per
// primary key, each run starting at a Public-Key/Secret-Key packet and
// running up to (but not including) the next one.
func splitKeyring(pkts []packet.Packet) [][]packet.Packet {
	var runs [][]packet.Packet
	for _, p := range pkts {
		if k, ok := p.(*packet.Key); ok && k.Role() == packet.RolePrimary {
			runs = append(runs, nil)
		}
		if len(runs) == 0 {
			continue // packets before the first primary key have no Cert to join
		}
		runs[len(runs)-1] = append(runs[len(runs)-1], p)
	}
	return runs
}

// FromPackets builds exactly one canonicalized Cert from pkts (spec
// §4.5's "Lifecycle"). It fails with MalformedCertError if pkts
// contains more than one primary key; use ReadKeyring for that case.
func FromPackets(pkts []packet.Packet, hf crypto.HashFactory, vf VerifierFactory, policy openpgp.Policy) (*Cert, error) {
	runs := splitKeyring(pkts)
	if len(runs) != 1 {
		return nil, openpgp.MalformedCertError("expected exactly one primary key")
	}
	c, err := Assemble(runs[0])
	if err != nil {
		return nil, err
	}
	if err := Canonicalize(c, hf, vf, policy); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadKeyring builds one canonicalized Cert per primary key found in
// pkts, in the order they appear (spec §4.5's "Lifecycle": "reading it
// via the multi-Cert parser yields one Cert per primary key").
func ReadKeyring(pkts []packet.Packet, hf crypto.HashFactory, vf VerifierFactory, policy openpgp.Policy) ([]*Cert, error) {
	var certs []*Cert
	for _, run := range splitKeyring(pkts) {
		c, err := Assemble(run)
		if err != nil {
			return nil, err
		}
		if err := Canonicalize(c, hf, vf, policy); err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	return certs, nil
}

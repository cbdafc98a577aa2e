// Package policy provides StandardPolicy, a config-driven
// implementation of the root package's Policy interface (spec §6),
// grounded in queilawithaQ-hockeypuck's BurntSushi/toml configuration
// habit: algorithm cutoffs live in a TOML document rather than in Go
// source, so deprecating an algorithm is a config change, not a
// release.
package policy

import (
	"io"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	openpgp "github.com/dirkz/sequoia-sub000"
)

// config is the on-disk shape: three tables of algorithm-name (or,
// for packet tags, decimal tag number as a string key) to an RFC3339
// cutoff timestamp at or after which the algorithm/tag is rejected.
type config struct {
	HashAlgos      map[string]time.Time `toml:"hash_algos"`
	SymmetricAlgos map[string]time.Time `toml:"symmetric_algos"`
	PacketTags     map[string]time.Time `toml:"packet_tags"`
	MinRSABits     int                  `toml:"min_rsa_bits"`
	AuthenticateDesignatedRevokers bool `toml:"authenticate_designated_revokers"`
}

// StandardPolicy is a Policy whose cutoffs are populated by Load (or
// left empty by the zero value, in which case nothing is ever
// rejected on age grounds — matching AcceptAllPolicy so unit tests
// don't need a config file on disk).
type StandardPolicy struct {
	hashCutoffs                    map[openpgp.HashAlgorithm]time.Time
	symmetricCutoffs               map[openpgp.SymmetricAlgorithm]time.Time
	packetTagCutoffs               map[int]time.Time
	minRSABits                     int
	authenticateDesignatedRevokers bool
}

var hashNames = map[string]openpgp.HashAlgorithm{
	"MD5": openpgp.HashMD5, "SHA1": openpgp.HashSHA1, "RIPEMD160": openpgp.HashRIPEMD160,
	"SHA256": openpgp.HashSHA256, "SHA384": openpgp.HashSHA384, "SHA512": openpgp.HashSHA512,
	"SHA224": openpgp.HashSHA224, "SHA3-256": openpgp.HashSHA3_256, "SHA3-512": openpgp.HashSHA3_512,
}

var symmetricNames = map[string]openpgp.SymmetricAlgorithm{
	"PLAINTEXT": openpgp.SymmetricPlaintext, "IDEA": openpgp.SymmetricIDEA,
	"TRIPLEDES": openpgp.SymmetricTripleDES, "CAST5": openpgp.SymmetricCAST5,
	"BLOWFISH": openpgp.SymmetricBlowfish, "AES128": openpgp.SymmetricAES128,
	"AES192": openpgp.SymmetricAES192, "AES256": openpgp.SymmetricAES256,
	"TWOFISH": openpgp.SymmetricTwofish,
}

// Load parses a TOML cutoff document (see package doc) into a new
// StandardPolicy.
func Load(r io.Reader) (*StandardPolicy, error) {
	var cfg config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "policy: decoding TOML config")
	}

	p := &StandardPolicy{
		hashCutoffs:                    make(map[openpgp.HashAlgorithm]time.Time, len(cfg.HashAlgos)),
		symmetricCutoffs:               make(map[openpgp.SymmetricAlgorithm]time.Time, len(cfg.SymmetricAlgos)),
		packetTagCutoffs:               make(map[int]time.Time, len(cfg.PacketTags)),
		minRSABits:                     cfg.MinRSABits,
		authenticateDesignatedRevokers: cfg.AuthenticateDesignatedRevokers,
	}
	for name, cutoff := range cfg.HashAlgos {
		algo, ok := hashNames[name]
		if !ok {
			return nil, errors.Errorf("policy: unknown hash algorithm name %q", name)
		}
		p.hashCutoffs[algo] = cutoff
	}
	for name, cutoff := range cfg.SymmetricAlgos {
		algo, ok := symmetricNames[name]
		if !ok {
			return nil, errors.Errorf("policy: unknown symmetric algorithm name %q", name)
		}
		p.symmetricCutoffs[algo] = cutoff
	}
	for name, cutoff := range cfg.PacketTags {
		tag, err := parseTagName(name)
		if err != nil {
			return nil, err
		}
		p.packetTagCutoffs[tag] = cutoff
	}
	return p, nil
}

func parseTagName(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, errors.Errorf("policy: empty packet tag key")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.Errorf("policy: packet tag key %q is not a decimal number", s)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

func (p *StandardPolicy) HashCutoff(algo openpgp.HashAlgorithm) (*time.Time, bool) {
	if p == nil {
		return nil, true
	}
	if t, ok := p.hashCutoffs[algo]; ok {
		return &t, true
	}
	return nil, true
}

func (p *StandardPolicy) SymmetricCutoff(algo openpgp.SymmetricAlgorithm) (*time.Time, bool) {
	if p == nil {
		return nil, true
	}
	if t, ok := p.symmetricCutoffs[algo]; ok {
		return &t, true
	}
	return nil, true
}

func (p *StandardPolicy) PacketTagCutoff(tag int) (*time.Time, bool) {
	if p == nil {
		return nil, true
	}
	if t, ok := p.packetTagCutoffs[tag]; ok {
		return &t, true
	}
	return nil, true
}

// SignatureIsAcceptable rejects signatures from keys below minRSABits
// (zero means no minimum configured).
func (p *StandardPolicy) SignatureIsAcceptable(sig *openpgp.SignatureInfo) error {
	if p == nil || p.minRSABits == 0 {
		return nil
	}
	if sig.PubKeyAlgo == openpgp.PKRSAEncryptSign || sig.PubKeyAlgo == openpgp.PKRSASignOnly {
		if sig.SignerKeyBits < p.minRSABits {
			return errors.Errorf("policy: signer's RSA key is %d bits, below the configured minimum of %d", sig.SignerKeyBits, p.minRSABits)
		}
	}
	return nil
}

// KeyIsAcceptable rejects keys below minRSABits (zero means no
// minimum configured).
func (p *StandardPolicy) KeyIsAcceptable(key *openpgp.KeyInfo) error {
	if p == nil || p.minRSABits == 0 {
		return nil
	}
	if key.PubKeyAlgo == openpgp.PKRSAEncryptSign || key.PubKeyAlgo == openpgp.PKRSASignOnly {
		if key.Bits < p.minRSABits {
			return errors.Errorf("policy: RSA key is %d bits, below the configured minimum of %d", key.Bits, p.minRSABits)
		}
	}
	return nil
}

func (p *StandardPolicy) AuthenticatesDesignatedRevokers() bool {
	return p != nil && p.authenticateDesignatedRevokers
}

var _ openpgp.Policy = (*StandardPolicy)(nil)

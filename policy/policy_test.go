package policy_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	openpgp "github.com/dirkz/sequoia-sub000"
	"github.com/dirkz/sequoia-sub000/policy"
)

func TestZeroValueAcceptsEverything(t *testing.T) {
	var p policy.StandardPolicy
	cutoff, ok := p.HashCutoff(openpgp.HashMD5)
	assert.True(t, ok)
	assert.Nil(t, cutoff)
	assert.False(t, p.AuthenticatesDesignatedRevokers())
}

func TestLoadAppliesCutoffs(t *testing.T) {
	doc := `
authenticate_designated_revokers = true
min_rsa_bits = 2048

[hash_algos]
MD5 = 1997-01-01T00:00:00Z
SHA1 = 2020-01-01T00:00:00Z

[symmetric_algos]
IDEA = 1997-01-01T00:00:00Z

[packet_tags]
"43" = 2020-01-01T00:00:00Z
`
	p, err := policy.Load(strings.NewReader(doc))
	require.NoError(t, err)

	cutoff, ok := p.HashCutoff(openpgp.HashSHA1)
	require.True(t, ok)
	require.NotNil(t, cutoff)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), *cutoff)

	cutoff, ok = p.HashCutoff(openpgp.HashSHA256)
	require.True(t, ok)
	assert.Nil(t, cutoff, "algorithm absent from the config has no opinion, not a ban")

	assert.True(t, p.AuthenticatesDesignatedRevokers())

	err = p.KeyIsAcceptable(&openpgp.KeyInfo{PubKeyAlgo: openpgp.PKRSAEncryptSign, Bits: 1024})
	assert.Error(t, err)
	err = p.KeyIsAcceptable(&openpgp.KeyInfo{PubKeyAlgo: openpgp.PKRSAEncryptSign, Bits: 4096})
	assert.NoError(t, err)
}

func TestLoadRejectsUnknownAlgorithmName(t *testing.T) {
	doc := `
[hash_algos]
MADE-UP = 2020-01-01T00:00:00Z
`
	_, err := policy.Load(strings.NewReader(doc))
	assert.Error(t, err)
}

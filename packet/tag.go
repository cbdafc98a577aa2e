// Package packet implements the streaming OpenPGP packet parser (spec
// §4.2, L2): a recursive-descent cursor over new/old-format CTBs with
// partial-length reassembly, transparent container decryption, and
// one-pass-signature hashing side effects.
package packet

// Tag identifies an OpenPGP packet type (RFC 4880 §4.3).
type Tag int

const (
	TagPKESK          Tag = 1
	TagSignature      Tag = 2
	TagSKESK          Tag = 3
	TagOnePassSig     Tag = 4
	TagSecretKey      Tag = 5
	TagPublicKey      Tag = 6
	TagSecretSubkey   Tag = 7
	TagCompressedData Tag = 8
	TagSymEncData     Tag = 9 // legacy Symmetrically Encrypted Data, no MDC
	TagMarker         Tag = 10
	TagLiteralData    Tag = 11
	TagTrust          Tag = 12
	TagUserID         Tag = 13
	TagPublicSubkey   Tag = 14
	TagUserAttribute  Tag = 17
	TagSEIP           Tag = 18
	TagMDC            Tag = 19
	TagAED            Tag = 20
	TagPadding        Tag = 21
)

func (t Tag) String() string {
	switch t {
	case TagPKESK:
		return "PKESK"
	case TagSignature:
		return "Signature"
	case TagSKESK:
		return "SKESK"
	case TagOnePassSig:
		return "OnePassSignature"
	case TagSecretKey:
		return "SecretKey"
	case TagPublicKey:
		return "PublicKey"
	case TagSecretSubkey:
		return "SecretSubkey"
	case TagCompressedData:
		return "CompressedData"
	case TagSymEncData:
		return "SymmetricallyEncryptedData"
	case TagMarker:
		return "Marker"
	case TagLiteralData:
		return "LiteralData"
	case TagTrust:
		return "Trust"
	case TagUserID:
		return "UserID"
	case TagPublicSubkey:
		return "PublicSubkey"
	case TagUserAttribute:
		return "UserAttribute"
	case TagSEIP:
		return "SEIP"
	case TagMDC:
		return "MDC"
	case TagAED:
		return "AED"
	case TagPadding:
		return "Padding"
	default:
		return "Unknown"
	}
}

// IsContainer reports whether a packet of this tag may bracket a
// nested packet stream that Cursor.Recurse can descend into.
func (t Tag) IsContainer() bool {
	switch t {
	case TagCompressedData, TagSEIP, TagAED, TagSymEncData:
		return true
	default:
		return false
	}
}

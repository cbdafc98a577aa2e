package packet

// SEIP is a Sym. Encrypted Integrity Protected Data packet (RFC 4880
// §5.13): a container whose plaintext is an inner packet stream, with
// a running SHA-1 hash (the "MDC") appended before encryption for
// tamper detection (spec §4.2, §4.9). Its body, once decrypted, is not
// modeled as a struct here: the caller (parse/stream's seipReader)
// decrypts it, checks and strips the trailing MDC packet, and hands
// the remaining plaintext to Cursor.Recurse as a nested packet
// sequence.
type SEIP struct {
	Version int // always 1

	// encryptedBody is the raw, still-encrypted packet body, retained
	// so the caller can decrypt it once a session key is known.
	encryptedBody []byte
}

func (s *SEIP) Tag() Tag { return TagSEIP }

func (s *SEIP) PacketBody() []byte {
	return append([]byte{1}, s.encryptedBody...)
}

// ParseSEIP decodes a SEIP packet body without decrypting it.
func ParseSEIP(body []byte) (*SEIP, error) {
	return &SEIP{Version: int(body[0]), encryptedBody: append([]byte(nil), body[1:]...)}, nil
}

// EncryptedBody returns the packet's still-encrypted payload, IV
// included (the IV is the cipher's block size worth of "random"
// prefix octets per RFC 4880 §5.13).
func (s *SEIP) EncryptedBody() []byte { return s.encryptedBody }

// NewSEIP wraps an already-encrypted body (ciphertext prefix included)
// in a SEIP packet.
func NewSEIP(encryptedBody []byte) *SEIP {
	return &SEIP{Version: 1, encryptedBody: encryptedBody}
}

package packet

import (
	"encoding/binary"
	"time"

	openpgp "github.com/dirkz/sequoia-sub000"
)

// LiteralDataFormat is the Literal Data packet's format octet (RFC
// 4880 §5.9).
type LiteralDataFormat byte

const (
	LiteralBinary LiteralDataFormat = 'b'
	LiteralText   LiteralDataFormat = 't'
	LiteralUTF8   LiteralDataFormat = 'u'
	LiteralMIME   LiteralDataFormat = 'm'
)

// LiteralData is a Literal Data packet: the innermost payload of an
// OpenPGP message (spec §4.2).
type LiteralData struct {
	Format   LiteralDataFormat
	FileName string
	Created  time.Time
	Body     []byte
}

func (l *LiteralData) Tag() Tag { return TagLiteralData }

func (l *LiteralData) PacketBody() []byte {
	name := []byte(l.FileName)
	buf := make([]byte, 0, 6+len(name)+len(l.Body))
	buf = append(buf, byte(l.Format), byte(len(name)))
	buf = append(buf, name...)
	var created [4]byte
	binary.BigEndian.PutUint32(created[:], uint32(l.Created.Unix()))
	buf = append(buf, created[:]...)
	buf = append(buf, l.Body...)
	return buf
}

// ParseLiteralData decodes a Literal Data packet body.
func ParseLiteralData(body []byte) (*LiteralData, error) {
	if len(body) < 6 {
		return nil, openpgp.StructuralError("malformed literal data packet")
	}
	format := LiteralDataFormat(body[0])
	nameLen := int(body[1])
	if len(body) < 2+nameLen+4 {
		return nil, openpgp.StructuralError("truncated literal data filename")
	}
	name := string(body[2 : 2+nameLen])
	created := time.Unix(int64(binary.BigEndian.Uint32(body[2+nameLen:2+nameLen+4])), 0).UTC()
	data := append([]byte(nil), body[2+nameLen+4:]...)
	return &LiteralData{Format: format, FileName: name, Created: created, Body: data}, nil
}

package packet

// Unknown represents a packet whose tag this module does not model,
// or a Marker packet whose body is not the expected one, with its raw
// body preserved (spec §4.2). The parser consults no Policy when
// deciding this.
type Unknown struct {
	RawTag Tag
	Body   []byte
}

func (u *Unknown) Tag() Tag { return u.RawTag }

func (u *Unknown) PacketBody() []byte { return u.Body }

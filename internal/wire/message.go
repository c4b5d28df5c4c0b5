package wire

// Type is a DNS record/question type. This core only interprets the rdata
// of A, NS, CNAME, and AAAA (spec.md §1 Non-goals); Parse skips records of
// any other type without appending them, and Emit writes such a record
// with an empty rdata.
type Type uint16

const (
	TypeA     Type = 1
	TypeNS    Type = 2
	TypeCNAME Type = 5
	TypeAAAA  Type = 28
)

// ClassIN is the only record class this core ever produces or expects.
const ClassIN = 1

// Question is one entry of a message's question section. It is comparable
// and usable directly as a map key (spec.md §3: "Questions are hashable:
// equality is structural").
type Question struct {
	Name  string
	Type  Type
	Class uint16
}

// Record is one resource record. Data holds the type-specific rdata in its
// semantic form: an IPv4/IPv6 address string for A/AAAA, a dotted domain
// name for NS/CNAME. TTL is excluded from Identity() so records differing
// only in TTL dedupe (spec.md §9).
type Record struct {
	Name  string
	Type  Type
	Class uint16
	TTL   uint32
	Data  string
}

// recordIdentity is the de-duplication key for a record: everything but TTL.
type recordIdentity struct {
	Name  string
	Type  Type
	Class uint16
	Data  string
}

// Identity returns the hashable (name, type, class, data) tuple used to
// deduplicate records across sections (spec.md §3, §9).
func (r Record) Identity() recordIdentity {
	return recordIdentity{Name: r.Name, Type: r.Type, Class: r.Class, Data: r.Data}
}

// Message is a parsed DNS message. It is immutable once returned by Parse,
// except that callers may rewrite ID and Flags before re-emitting a cached
// response (spec.md §3).
type Message struct {
	ID          uint16
	Flags       Flags
	Questions   []Question
	Answers     []Record
	Authorities []Record
	Additional  []Record

	// Stream marks whether this message travels with a 2-byte TCP length
	// prefix. It is not part of the message's logical identity.
	Stream bool

	// Hops counts the referrals an iterative resolution took to produce
	// this message. Set by the resolver; zero for multiply and
	// freshly-parsed messages, while cached copies keep the value of the
	// message they were copied from. Not part of the wire format.
	Hops int
}

// Parse decodes a full message buffer. If stream is true, the leading
// 2-byte big-endian length prefix is stripped first.
func Parse(raw []byte, stream bool) (*Message, error) {
	if stream {
		if len(raw) < 2 {
			return nil, ErrMalformed
		}
		n := int(raw[0])<<8 | int(raw[1])
		raw = raw[2:]
		if n > len(raw) {
			return nil, ErrMalformed
		}
		raw = raw[:n]
	}
	if len(raw) > MaxMessageSize {
		return nil, ErrMalformed
	}

	b := newBuffer(raw)

	id, err := b.readUint16()
	if err != nil {
		return nil, err
	}
	rawFlags, err := b.readUint16()
	if err != nil {
		return nil, err
	}
	qdcount, err := b.readUint16()
	if err != nil {
		return nil, err
	}
	ancount, err := b.readUint16()
	if err != nil {
		return nil, err
	}
	nscount, err := b.readUint16()
	if err != nil {
		return nil, err
	}
	arcount, err := b.readUint16()
	if err != nil {
		return nil, err
	}

	m := &Message{ID: id, Flags: decodeFlags(rawFlags), Stream: stream}

	for i := uint16(0); i < qdcount; i++ {
		q, err := readQuestion(b)
		if err != nil {
			return nil, err
		}
		m.Questions = append(m.Questions, q)
	}

	for i := uint16(0); i < ancount; i++ {
		rec, ok, err := readRecord(b)
		if err != nil {
			return nil, err
		}
		if ok {
			m.Answers = append(m.Answers, rec)
		}
	}
	for i := uint16(0); i < nscount; i++ {
		rec, ok, err := readRecord(b)
		if err != nil {
			return nil, err
		}
		if ok {
			m.Authorities = append(m.Authorities, rec)
		}
	}
	for i := uint16(0); i < arcount; i++ {
		rec, ok, err := readRecord(b)
		if err != nil {
			return nil, err
		}
		if ok {
			m.Additional = append(m.Additional, rec)
		}
	}

	return m, nil
}

func readQuestion(b *buffer) (Question, error) {
	name, err := b.readName()
	if err != nil {
		return Question{}, err
	}
	t, err := b.readUint16()
	if err != nil {
		return Question{}, err
	}
	class, err := b.readUint16()
	if err != nil {
		return Question{}, err
	}
	return Question{Name: name, Type: Type(t), Class: class}, nil
}

// readRecord reads one resource record. It returns ok=false (no error) for
// a type this core doesn't interpret, per spec.md §4.1 step 3: "unknown
// types are silently skipped (record not appended)".
func readRecord(b *buffer) (Record, bool, error) {
	name, err := b.readName()
	if err != nil {
		return Record{}, false, err
	}
	t, err := b.readUint16()
	if err != nil {
		return Record{}, false, err
	}
	class, err := b.readUint16()
	if err != nil {
		return Record{}, false, err
	}
	ttl, err := b.readUint32()
	if err != nil {
		return Record{}, false, err
	}
	rdlen, err := b.readUint16()
	if err != nil {
		return Record{}, false, err
	}
	start := b.pos
	if b.remaining() < int(rdlen) {
		return Record{}, false, ErrMalformed
	}

	rt := Type(t)
	var data string
	switch rt {
	case TypeA:
		if rdlen != 4 {
			return Record{}, false, ErrMalformed
		}
		raw, err := b.readBytes(4)
		if err != nil {
			return Record{}, false, err
		}
		data = ipv4String(raw)
	case TypeAAAA:
		if rdlen != 16 {
			return Record{}, false, ErrMalformed
		}
		raw, err := b.readBytes(16)
		if err != nil {
			return Record{}, false, err
		}
		data = ipv6String(raw)
	case TypeNS, TypeCNAME:
		name, err := b.readName()
		if err != nil {
			return Record{}, false, err
		}
		data = name
		// A compressed name can read fewer or more bytes than rdlen implied
		// (it may jump elsewhere entirely); resync to the rdata boundary.
		b.pos = start + int(rdlen)
	default:
		// Unknown type: skip its rdata and report not-appended.
		if _, err := b.readBytes(int(rdlen)); err != nil {
			return Record{}, false, err
		}
		return Record{}, false, nil
	}

	if b.pos != start+int(rdlen) {
		return Record{}, false, ErrMalformed
	}

	return Record{Name: name, Type: rt, Class: class, TTL: ttl, Data: data}, true, nil
}

// Emit serializes m into its uncompressed wire form. Header counts are
// taken from the section lengths; Z is forced to zero.
func Emit(m *Message) ([]byte, error) {
	w := &writer{}
	w.writeUint16(m.ID)
	w.writeUint16(m.Flags.encode())
	w.writeUint16(uint16(len(m.Questions)))
	w.writeUint16(uint16(len(m.Answers)))
	w.writeUint16(uint16(len(m.Authorities)))
	w.writeUint16(uint16(len(m.Additional)))

	for _, q := range m.Questions {
		if err := w.writeName(q.Name); err != nil {
			return nil, err
		}
		w.writeUint16(uint16(q.Type))
		w.writeUint16(ClassIN)
	}

	for _, section := range [][]Record{m.Answers, m.Authorities, m.Additional} {
		for _, r := range section {
			if err := writeRecord(w, r); err != nil {
				return nil, err
			}
		}
	}

	if m.Stream {
		if len(w.buf) > 0xFFFF {
			return nil, ErrMalformed
		}
		out := make([]byte, 2, 2+len(w.buf))
		out[0] = byte(len(w.buf) >> 8)
		out[1] = byte(len(w.buf))
		out = append(out, w.buf...)
		return out, nil
	}
	return w.buf, nil
}

func writeRecord(w *writer, r Record) error {
	if err := w.writeName(r.Name); err != nil {
		return err
	}
	w.writeUint16(uint16(r.Type))
	w.writeUint16(ClassIN)
	w.writeUint32(r.TTL)

	switch r.Type {
	case TypeA:
		ip, err := parseIPv4(r.Data)
		if err != nil {
			return err
		}
		w.writeUint16(4)
		w.writeBytes(ip)
	case TypeAAAA:
		ip, err := parseIPv6(r.Data)
		if err != nil {
			return err
		}
		w.writeUint16(16)
		w.writeBytes(ip)
	case TypeNS, TypeCNAME:
		inner := &writer{}
		if err := inner.writeName(r.Data); err != nil {
			return err
		}
		w.writeUint16(uint16(len(inner.buf)))
		w.writeBytes(inner.buf)
	default:
		w.writeUint16(0)
	}
	return nil
}

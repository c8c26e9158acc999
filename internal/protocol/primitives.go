// Package protocol implements the length-prefixed binary wire format of
// §4.7: a u16 sequence number, one opcode byte, then opcode-specific
// fields, little-endian throughout. Each channel (client, admin, agent, monitor, signal) gets
// its own message set in its own file; Writer/Reader here are the shared
// scalar encoders every message type is built from.
package protocol

import (
	"encoding/binary"

	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/policy"
)

// MaxStringLen bounds a single decoded string field, guarding against a
// corrupt or hostile length prefix forcing an enormous allocation.
const MaxStringLen = 1 << 20

// Writer accumulates an encoded payload (everything after the frame's u32
// length prefix, starting with the u16 sequence number and the opcode
// byte).
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) PutU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) PutBool(v bool) {
	if v {
		w.PutU8(1)
	} else {
		w.PutU8(0)
	}
}

func (w *Writer) PutU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutI64(v int64) { w.PutU64(uint64(v)) }

func (w *Writer) PutString(s string) {
	w.PutU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// PutKey writes a PolicyKey's three string fields in client/user/privilege
// order.
func (w *Writer) PutKey(k policy.Key) {
	w.PutString(k.Client)
	w.PutString(k.User)
	w.PutString(k.Privilege)
}

// PutResult writes a PolicyResult as (type u16, metadata string).
func (w *Writer) PutResult(r policy.Result) {
	w.PutU16(uint16(r.Type))
	w.PutString(r.Metadata)
}

// Reader decodes a payload byte slice (opcode already consumed by the
// caller that dispatched on it) into scalar and compound fields.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(payload []byte) *Reader { return &Reader{buf: payload} }

func (r *Reader) remaining() int { return len(r.buf) - r.pos }

func (r *Reader) GetU8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, apperr.New(apperr.CodeOutOfData, "u8")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) GetBool() (bool, error) {
	v, err := r.GetU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *Reader) GetU16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, apperr.New(apperr.CodeOutOfData, "u16")
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) GetU32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, apperr.New(apperr.CodeOutOfData, "u32")
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) GetU64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, apperr.New(apperr.CodeOutOfData, "u64")
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) GetI64() (int64, error) {
	v, err := r.GetU64()
	return int64(v), err
}

func (r *Reader) GetString() (string, error) {
	n, err := r.GetU32()
	if err != nil {
		return "", err
	}
	if n > MaxStringLen {
		return "", apperr.New(apperr.CodeInvalidProtocol, "string field too long")
	}
	if r.remaining() < int(n) {
		return "", apperr.New(apperr.CodeOutOfData, "string")
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *Reader) GetKey() (policy.Key, error) {
	client, err := r.GetString()
	if err != nil {
		return policy.Key{}, err
	}
	user, err := r.GetString()
	if err != nil {
		return policy.Key{}, err
	}
	privilege, err := r.GetString()
	if err != nil {
		return policy.Key{}, err
	}
	return policy.Key{Client: client, User: user, Privilege: privilege}, nil
}

func (r *Reader) GetResult() (policy.Result, error) {
	t, err := r.GetU16()
	if err != nil {
		return policy.Result{}, err
	}
	meta, err := r.GetString()
	if err != nil {
		return policy.Result{}, err
	}
	return policy.Result{Type: policy.Type(t), Metadata: meta}, nil
}

// Done reports whether the payload was fully consumed; a message decoder
// should check this after reading its known fields so trailing garbage is
// treated as a protocol error rather than silently ignored.
func (r *Reader) Done() bool { return r.remaining() == 0 }

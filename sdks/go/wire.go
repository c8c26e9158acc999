package privdclient

import (
	"encoding/binary"
	"errors"
	"io"
)

// The wire format mirrors privd's client channel exactly: a little-endian
// u32 length prefix, then a u16 sequence number, a u8 opcode, and
// opcode-specific fields. This file is a minimal, standalone re-
// implementation of that codec — the SDK is its own Go module and cannot
// import the daemon's internal protocol package.

const (
	maxFrameLen    = 16 * 1024 * 1024
	frameHeaderLen = 4
	maxStringLen   = 1 << 20
)

type opCode uint8

const (
	opCheckReq opCode = iota + 1
	opCheckResp
	opSimpleCheckReq
	opSimpleCheckResp
	opCancelReq
	opCancelResp
	opMonitorEntriesPut
)

var errShortFrame = errors.New("privdclient: truncated frame")
var errFrameTooLarge = errors.New("privdclient: frame exceeds maximum length")

type wireWriter struct {
	buf []byte
}

func (w *wireWriter) putU8(v uint8) { w.buf = append(w.buf, v) }

func (w *wireWriter) putU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *wireWriter) putU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *wireWriter) putI64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *wireWriter) putString(s string) {
	w.putU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *wireWriter) putKey(k Key) {
	w.putString(k.Client)
	w.putString(k.User)
	w.putString(k.Privilege)
}

type wireReader struct {
	buf []byte
	pos int
}

func (r *wireReader) remaining() int { return len(r.buf) - r.pos }

func (r *wireReader) getU8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, errShortFrame
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *wireReader) getU16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, errShortFrame
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *wireReader) getU32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, errShortFrame
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *wireReader) getString() (string, error) {
	n, err := r.getU32()
	if err != nil {
		return "", err
	}
	if n > maxStringLen || r.remaining() < int(n) {
		return "", errShortFrame
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// getResult reads a PolicyResult (type u16, metadata string), the wire
// shape CheckResp/SimpleCheckResp carry (internal/protocol/primitives.go's
// Writer.PutResult) — distinct from MonitorEntryWire's own (type i64)
// field below.
func (r *wireReader) getResult() (resultType uint16, metadata string, err error) {
	resultType, err = r.getU16()
	if err != nil {
		return 0, "", err
	}
	metadata, err = r.getString()
	if err != nil {
		return 0, "", err
	}
	return resultType, metadata, nil
}

// writeFrame prefixes payload with its little-endian u32 length and
// writes both to w in one call.
func writeFrame(w io.Writer, payload []byte) error {
	var header [frameHeaderLen]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	framed := make([]byte, 0, frameHeaderLen+len(payload))
	framed = append(framed, header[:]...)
	framed = append(framed, payload...)
	_, err := w.Write(framed)
	return err
}

// extractFrame pulls one complete frame out of buf, mirroring the
// daemon's own framing exactly so partial reads across Process calls
// reassemble correctly.
func extractFrame(buf []byte) (payload []byte, consumed int, ok bool, err error) {
	if len(buf) < frameHeaderLen {
		return nil, 0, false, nil
	}
	length := binary.LittleEndian.Uint32(buf[:frameHeaderLen])
	if length > maxFrameLen {
		return nil, 0, false, errFrameTooLarge
	}
	total := frameHeaderLen + int(length)
	if len(buf) < total {
		return nil, 0, false, nil
	}
	return buf[frameHeaderLen:total], total, true, nil
}

// encodeCheckReq builds a CheckReq frame payload (seq, opcode, key).
func encodeCheckReq(seq uint16, k Key) []byte {
	w := &wireWriter{}
	w.putU16(seq)
	w.putU8(uint8(opCheckReq))
	w.putKey(k)
	return w.buf
}

// encodeCancelReq builds a CancelReq frame payload.
func encodeCancelReq(seq uint16) []byte {
	w := &wireWriter{}
	w.putU16(seq)
	w.putU8(uint8(opCancelReq))
	return w.buf
}

// encodeMonitorEntriesPut reports a locally (cache-)resolved decision to
// the daemon's monitor hub so audit/monitor consumers still see it. The
// type field is a full i64 (internal/protocol/client.go's
// MonitorEntryWire encodes policy.Type via PutI64, not PutU16 — that
// field has no metadata string alongside it, unlike PolicyResult above).
func encodeMonitorEntriesPut(seq uint16, k Key, resultType int64, sec, nsec int64) []byte {
	w := &wireWriter{}
	w.putU16(seq)
	w.putU8(uint8(opMonitorEntriesPut))
	w.putU16(1)
	w.putKey(k)
	w.putI64(resultType)
	w.putI64(sec)
	w.putI64(nsec)
	return w.buf
}

// decodedFrame is a parsed response frame: the opcode, its sequence
// number, and the unconsumed payload reader positioned just past the
// opcode byte.
type decodedFrame struct {
	op  opCode
	seq uint16
	r   *wireReader
}

func decodeFrame(payload []byte) (decodedFrame, error) {
	r := &wireReader{buf: payload}
	seq, err := r.getU16()
	if err != nil {
		return decodedFrame{}, err
	}
	op, err := r.getU8()
	if err != nil {
		return decodedFrame{}, err
	}
	return decodedFrame{op: opCode(op), seq: seq, r: r}, nil
}

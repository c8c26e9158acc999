package protocol

import (
	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/policy"
)

// CheckReq asks the daemon to evaluate a policy key (§4.9 client check
// state machine).
type CheckReq struct {
	Seq uint16
	Key policy.Key
}

func (m CheckReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpCheckReq))
	w.PutKey(m.Key)
	return w.Bytes()
}

func decodeCheckReq(seq uint16, r *Reader) (CheckReq, error) {
	key, err := r.GetKey()
	return CheckReq{Seq: seq, Key: key}, err
}

// CheckResp answers a CheckReq with the resolved terminal result.
type CheckResp struct {
	Seq    uint16
	Result policy.Result
}

func (m CheckResp) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpCheckResp))
	w.PutResult(m.Result)
	return w.Bytes()
}

func decodeCheckResp(seq uint16, r *Reader) (CheckResp, error) {
	result, err := r.GetResult()
	return CheckResp{Seq: seq, Result: result}, err
}

// SimpleCheckReq is CheckReq's non-suspending sibling: the caller accepts
// CacheMiss/ServiceNotAvailable-style answers rather than waiting on an
// agent round-trip.
type SimpleCheckReq struct {
	Seq uint16
	Key policy.Key
}

func (m SimpleCheckReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpSimpleCheckReq))
	w.PutKey(m.Key)
	return w.Bytes()
}

func decodeSimpleCheckReq(seq uint16, r *Reader) (SimpleCheckReq, error) {
	key, err := r.GetKey()
	return SimpleCheckReq{Seq: seq, Key: key}, err
}

// SimpleCheckResp carries a signed return code alongside the result: a
// negative value means the answer could not be produced without
// suspending (the caller must fall back to CheckReq).
type SimpleCheckResp struct {
	Seq       uint16
	ReturnVal int32
	Result    policy.Result
}

func (m SimpleCheckResp) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpSimpleCheckResp))
	w.PutU32(uint32(m.ReturnVal))
	w.PutResult(m.Result)
	return w.Bytes()
}

func decodeSimpleCheckResp(seq uint16, r *Reader) (SimpleCheckResp, error) {
	raw, err := r.GetU32()
	if err != nil {
		return SimpleCheckResp{}, err
	}
	result, err := r.GetResult()
	return SimpleCheckResp{Seq: seq, ReturnVal: int32(raw), Result: result}, err
}

// CancelReq asks the daemon to cancel a pending CheckReq (§4.9).
type CancelReq struct {
	Seq uint16
}

func (m CancelReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpCancelReq))
	return w.Bytes()
}

func decodeCancelReq(seq uint16, _ *Reader) (CancelReq, error) {
	return CancelReq{Seq: seq}, nil
}

// CancelResp acknowledges a CancelReq.
type CancelResp struct {
	Seq uint16
}

func (m CancelResp) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpCancelResp))
	return w.Bytes()
}

func decodeCancelResp(seq uint16, _ *Reader) (CancelResp, error) {
	return CancelResp{Seq: seq}, nil
}

// MonitorEntryWire is one entry's wire shape: a PolicyKey, the raw result
// type and two i64 timestamp halves (§3 MonitorEntry, §4.7).
type MonitorEntryWire struct {
	Key  policy.Key
	Type policy.Type
	Sec  int64
	Nsec int64
}

// MonitorEntriesPut lets a checker push pre-recorded entries into the
// monitor ring (used by the async client library when it resolves
// requests from its own cache without round-tripping the daemon).
type MonitorEntriesPut struct {
	Seq     uint16
	Entries []MonitorEntryWire
}

func (m MonitorEntriesPut) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpMonitorEntriesPut))
	w.PutU16(uint16(len(m.Entries)))
	for _, e := range m.Entries {
		w.PutKey(e.Key)
		w.PutI64(int64(e.Type))
		w.PutI64(e.Sec)
		w.PutI64(e.Nsec)
	}
	return w.Bytes()
}

func decodeMonitorEntriesPut(seq uint16, r *Reader) (MonitorEntriesPut, error) {
	count, err := r.GetU16()
	if err != nil {
		return MonitorEntriesPut{}, err
	}
	entries := make([]MonitorEntryWire, 0, count)
	for i := uint16(0); i < count; i++ {
		key, err := r.GetKey()
		if err != nil {
			return MonitorEntriesPut{}, err
		}
		typeRaw, err := r.GetI64()
		if err != nil {
			return MonitorEntriesPut{}, err
		}
		sec, err := r.GetI64()
		if err != nil {
			return MonitorEntriesPut{}, err
		}
		nsec, err := r.GetI64()
		if err != nil {
			return MonitorEntriesPut{}, err
		}
		entries = append(entries, MonitorEntryWire{Key: key, Type: policy.Type(typeRaw), Sec: sec, Nsec: nsec})
	}
	return MonitorEntriesPut{Seq: seq, Entries: entries}, nil
}

// DecodeClientRequest dispatches payload to the matching client-channel
// request type.
func DecodeClientRequest(payload []byte) (any, error) {
	op, seq, r, err := splitHeader(payload)
	if err != nil {
		return nil, err
	}
	if !op.ValidOn(ChannelClient) {
		return nil, apperr.New(apperr.CodeWrongOpCode, "not a client-channel opcode")
	}
	var (
		msg any
		derr error
	)
	switch op {
	case OpCheckReq:
		msg, derr = decodeCheckReq(seq, r)
	case OpSimpleCheckReq:
		msg, derr = decodeSimpleCheckReq(seq, r)
	case OpCancelReq:
		msg, derr = decodeCancelReq(seq, r)
	case OpMonitorEntriesPut:
		msg, derr = decodeMonitorEntriesPut(seq, r)
	default:
		return nil, apperr.New(apperr.CodeWrongOpCode, "unexpected client response opcode in request position")
	}
	if derr != nil {
		return nil, derr
	}
	if !r.Done() {
		return nil, apperr.New(apperr.CodeInvalidProtocol, "trailing bytes after client request")
	}
	return msg, nil
}

// DecodeClientResponse dispatches payload to the matching client-channel
// response type; used by the async client library (sdks/go) to decode
// what the daemon sends back on the client socket.
func DecodeClientResponse(payload []byte) (any, error) {
	op, seq, r, err := splitHeader(payload)
	if err != nil {
		return nil, err
	}
	var (
		msg  any
		derr error
	)
	switch op {
	case OpCheckResp:
		msg, derr = decodeCheckResp(seq, r)
	case OpSimpleCheckResp:
		msg, derr = decodeSimpleCheckResp(seq, r)
	case OpCancelResp:
		msg, derr = decodeCancelResp(seq, r)
	default:
		return nil, apperr.New(apperr.CodeWrongOpCode, "unexpected client request opcode in response position")
	}
	if derr != nil {
		return nil, derr
	}
	if !r.Done() {
		return nil, apperr.New(apperr.CodeInvalidProtocol, "trailing bytes after client response")
	}
	return msg, nil
}

// splitHeader reads the shared (sequenceNumber, opcode) prefix every
// frame carries and returns a Reader positioned at the opcode-specific
// fields. Every Encode method in this package writes seq before opcode
// to match; a peer implementation (e.g. sdks/go's wire codec) must mirror
// this exact order rather than the §4.7 prose's "payload begins with a u8
// opcode", which describes the payload informally and is not byte-literal.
func splitHeader(payload []byte) (OpCode, uint16, *Reader, error) {
	r := NewReader(payload)
	seq, err := r.GetU16()
	if err != nil {
		return 0, 0, nil, err
	}
	opRaw, err := r.GetU8()
	if err != nil {
		return 0, 0, nil, err
	}
	return OpCode(opRaw), seq, r, nil
}

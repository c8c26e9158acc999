package protocol

import (
	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/policy"
)

// MonitorGetEntriesReq asks the monitor hub for at least BufferSize
// entries accumulated since the caller's cursor, or whatever has
// accumulated if Force is set (§4.11 fetch).
type MonitorGetEntriesReq struct {
	Seq        uint16
	BufferSize uint32
	Force      bool
}

func (m MonitorGetEntriesReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpMonitorGetEntriesReq))
	w.PutU32(m.BufferSize)
	w.PutBool(m.Force)
	return w.Bytes()
}

func decodeMonitorGetEntriesReq(seq uint16, r *Reader) (MonitorGetEntriesReq, error) {
	bufferSize, err := r.GetU32()
	if err != nil {
		return MonitorGetEntriesReq{}, err
	}
	force, err := r.GetBool()
	return MonitorGetEntriesReq{Seq: seq, BufferSize: bufferSize, Force: force}, err
}

// MonitorGetEntriesResp carries the entries accumulated since the
// subscriber's cursor.
type MonitorGetEntriesResp struct {
	Seq     uint16
	Entries []MonitorEntryWire
}

func (m MonitorGetEntriesResp) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpMonitorGetEntriesResp))
	w.PutU32(uint32(len(m.Entries)))
	for _, e := range m.Entries {
		w.PutKey(e.Key)
		w.PutU16(uint16(e.Type))
		w.PutI64(e.Sec)
		w.PutI64(e.Nsec)
	}
	return w.Bytes()
}

func decodeMonitorGetEntriesResp(seq uint16, r *Reader) (MonitorGetEntriesResp, error) {
	count, err := r.GetU32()
	if err != nil {
		return MonitorGetEntriesResp{}, err
	}
	entries, err := decodeMonitorEntries(r, count)
	return MonitorGetEntriesResp{Seq: seq, Entries: entries}, err
}

// MonitorGetFlushReq is Fetch(force=true) followed by unsubscribe
// (§4.11 flush).
type MonitorGetFlushReq struct {
	Seq uint16
}

func (m MonitorGetFlushReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpMonitorGetFlushReq))
	return w.Bytes()
}

func decodeMonitorGetFlushReq(seq uint16, _ *Reader) (MonitorGetFlushReq, error) {
	return MonitorGetFlushReq{Seq: seq}, nil
}

func decodeMonitorEntries(r *Reader, count uint32) ([]MonitorEntryWire, error) {
	out := make([]MonitorEntryWire, 0, count)
	for i := uint32(0); i < count; i++ {
		key, err := r.GetKey()
		if err != nil {
			return nil, err
		}
		t, err := r.GetU16()
		if err != nil {
			return nil, err
		}
		sec, err := r.GetI64()
		if err != nil {
			return nil, err
		}
		nsec, err := r.GetI64()
		if err != nil {
			return nil, err
		}
		out = append(out, MonitorEntryWire{Key: key, Type: policy.Type(t), Sec: sec, Nsec: nsec})
	}
	return out, nil
}

// decodeMonitorBody decodes a monitor-channel request whose opcode was
// already identified by the caller (used both by DecodeMonitorRequest and
// by the admin channel's multiplexed dispatch in admin.go).
func decodeMonitorBody(op OpCode, seq uint16, r *Reader) (any, error) {
	var (
		msg  any
		derr error
	)
	switch op {
	case OpMonitorGetEntriesReq:
		msg, derr = decodeMonitorGetEntriesReq(seq, r)
	case OpMonitorGetFlushReq:
		msg, derr = decodeMonitorGetFlushReq(seq, r)
	default:
		return nil, apperr.New(apperr.CodeWrongOpCode, "unexpected monitor response opcode in request position")
	}
	if derr != nil {
		return nil, derr
	}
	if !r.Done() {
		return nil, apperr.New(apperr.CodeInvalidProtocol, "trailing bytes after monitor request")
	}
	return msg, nil
}

// DecodeMonitorRequest dispatches payload to the matching monitor-channel
// request type.
func DecodeMonitorRequest(payload []byte) (any, error) {
	op, seq, r, err := splitHeader(payload)
	if err != nil {
		return nil, err
	}
	if !op.ValidOn(ChannelMonitor) {
		return nil, apperr.New(apperr.CodeWrongOpCode, "not a monitor-channel opcode")
	}
	return decodeMonitorBody(op, seq, r)
}

// DecodeMonitorResponse dispatches payload to the matching monitor-channel
// response type.
func DecodeMonitorResponse(payload []byte) (any, error) {
	op, seq, r, err := splitHeader(payload)
	if err != nil {
		return nil, err
	}
	if op != OpMonitorGetEntriesResp {
		return nil, apperr.New(apperr.CodeWrongOpCode, "unexpected monitor opcode in response position")
	}
	msg, err := decodeMonitorGetEntriesResp(seq, r)
	if err != nil {
		return nil, err
	}
	if !r.Done() {
		return nil, apperr.New(apperr.CodeInvalidProtocol, "trailing bytes after monitor response")
	}
	return msg, nil
}

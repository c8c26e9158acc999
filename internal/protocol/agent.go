package protocol

import (
	"github.com/privd/privd/internal/apperr"
)

// AgentRegisterReq is sent once by a connecting agent to claim ownership
// of an agent-type (§4.9 agent registration). Only one connection may own
// a given agent-type at a time.
type AgentRegisterReq struct {
	Seq       uint16
	AgentType string
}

func (m AgentRegisterReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpAgentRegisterReq))
	w.PutString(m.AgentType)
	return w.Bytes()
}

func decodeAgentRegisterReq(seq uint16, r *Reader) (AgentRegisterReq, error) {
	agentType, err := r.GetString()
	return AgentRegisterReq{Seq: seq, AgentType: agentType}, err
}

// AgentRegisterResp answers an AgentRegisterReq; Success is false if the
// agent-type is already owned by another connection.
type AgentRegisterResp struct {
	Seq     uint16
	Success bool
}

func (m AgentRegisterResp) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpAgentRegisterResp))
	w.PutBool(m.Success)
	return w.Bytes()
}

func decodeAgentRegisterResp(seq uint16, r *Reader) (AgentRegisterResp, error) {
	success, err := r.GetBool()
	return AgentRegisterResp{Seq: seq, Success: success}, err
}

// AgentActionReq carries both directions of one agent round-trip (§4.7
// Agent channel, §4.9): the daemon sends it with Tag ACTION to pose a
// query (Payload is the plugin's ANSWER_NOTREADY payload) or Tag CANCEL
// to abandon one; the agent sends it back with Tag ACTION to reply
// (Payload is its answer payload). Seq is the agent-talker id allocated
// from the agent connection's own sequence pool, distinct from the
// originating client connection's sequence number (§3 PendingRequest:
// "agent-talker-id").
type AgentActionReq struct {
	Seq     uint16
	Tag     AgentActionTag
	Payload string
}

func (m AgentActionReq) Encode() []byte {
	w := NewWriter()
	w.PutU16(m.Seq)
	w.PutU8(uint8(OpAgentActionReq))
	w.PutU8(uint8(m.Tag))
	w.PutString(m.Payload)
	return w.Bytes()
}

func decodeAgentActionReq(seq uint16, r *Reader) (AgentActionReq, error) {
	tagRaw, err := r.GetU8()
	if err != nil {
		return AgentActionReq{}, err
	}
	payload, err := r.GetString()
	return AgentActionReq{Seq: seq, Tag: AgentActionTag(tagRaw), Payload: payload}, err
}

// DecodeAgentMessage dispatches payload to the matching agent-channel
// message type. Unlike the client/admin channels, the agent channel
// carries both requests and responses through the same opcode set in
// both directions (register/register-ack, then a run of AgentActionReq
// frames flowing either way), so request and response share one decoder.
func DecodeAgentMessage(payload []byte) (any, error) {
	op, seq, r, err := splitHeader(payload)
	if err != nil {
		return nil, err
	}
	if !op.ValidOn(ChannelAgent) {
		return nil, apperr.New(apperr.CodeWrongOpCode, "not an agent-channel opcode")
	}
	var (
		msg  any
		derr error
	)
	switch op {
	case OpAgentRegisterReq:
		msg, derr = decodeAgentRegisterReq(seq, r)
	case OpAgentRegisterResp:
		msg, derr = decodeAgentRegisterResp(seq, r)
	case OpAgentActionReq:
		msg, derr = decodeAgentActionReq(seq, r)
	default:
		return nil, apperr.New(apperr.CodeWrongOpCode, "unhandled agent-channel opcode")
	}
	if derr != nil {
		return nil, derr
	}
	if !r.Done() {
		return nil, apperr.New(apperr.CodeInvalidProtocol, "trailing bytes after agent message")
	}
	return msg, nil
}

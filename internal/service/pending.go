package service

import (
	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/policy"
)

// PendingRequest is the tuple §3 describes: a client check suspended on
// an agent round-trip, identified by the client connection/sequence pair
// that must eventually receive its answer and the agent connection/
// sequence pair correlating the outstanding AgentActionReq.
type PendingRequest struct {
	ClientConn ConnID
	ClientSeq  uint16
	Key        policy.Key
	PluginType policy.Type
	AgentConn  ConnID
	AgentSeq   uint16
	Cancelled  bool
}

type clientKey struct {
	conn ConnID
	seq  uint16
}

type agentKey struct {
	conn ConnID
	seq  uint16
}

// PendingTable is the daemon's awaiting-agent state machine (C10): every
// PendingRequest is reachable either by the client identity that must
// receive its answer or by the agent identity that must produce it.
type PendingTable struct {
	byClient   map[clientKey]*PendingRequest
	byAgent    map[agentKey]*PendingRequest
	perConn    map[ConnID]int
	maxPerConn int
}

// NewPendingTable returns an empty table bounding each client connection
// to maxPerConn concurrently suspended checks.
func NewPendingTable(maxPerConn int) *PendingTable {
	return &PendingTable{
		byClient:   make(map[clientKey]*PendingRequest),
		byAgent:    make(map[agentKey]*PendingRequest),
		perConn:    make(map[ConnID]int),
		maxPerConn: maxPerConn,
	}
}

// Add registers p, indexed by both its client and agent identities. It
// fails with MaxPendingRequests if p.ClientConn already has maxPerConn
// requests outstanding (§4.9).
func (t *PendingTable) Add(p *PendingRequest) error {
	if t.perConn[p.ClientConn] >= t.maxPerConn {
		return apperr.New(apperr.CodeMaxPendingRequests, "too many outstanding checks on this connection")
	}
	t.byClient[clientKey{p.ClientConn, p.ClientSeq}] = p
	t.byAgent[agentKey{p.AgentConn, p.AgentSeq}] = p
	t.perConn[p.ClientConn]++
	return nil
}

// LookupByClient finds the pending request a CancelReq names.
func (t *PendingTable) LookupByClient(conn ConnID, seq uint16) (*PendingRequest, bool) {
	p, ok := t.byClient[clientKey{conn, seq}]
	return p, ok
}

// LookupByAgent finds the pending request an AgentActionReq reply
// resolves.
func (t *PendingTable) LookupByAgent(conn ConnID, seq uint16) (*PendingRequest, bool) {
	p, ok := t.byAgent[agentKey{conn, seq}]
	return p, ok
}

// ForgetClient removes p's client-side index entry and frees its slot in
// the per-connection bound, without disturbing the agent-side index
// (used on explicit cancel: the client's visible life of the request
// ends at the CancelResp, but the agent may still reply later and must
// be matched, then silently dropped, by LookupByAgent/RemoveByAgent).
func (t *PendingTable) ForgetClient(p *PendingRequest) {
	if _, ok := t.byClient[clientKey{p.ClientConn, p.ClientSeq}]; ok {
		delete(t.byClient, clientKey{p.ClientConn, p.ClientSeq})
		t.perConn[p.ClientConn]--
	}
}

// Remove deletes p from both indices and frees its per-connection slot if
// it had not already been freed by ForgetClient.
func (t *PendingTable) Remove(p *PendingRequest) {
	if _, ok := t.byClient[clientKey{p.ClientConn, p.ClientSeq}]; ok {
		delete(t.byClient, clientKey{p.ClientConn, p.ClientSeq})
		t.perConn[p.ClientConn]--
	}
	delete(t.byAgent, agentKey{p.AgentConn, p.AgentSeq})
}

// DropClient returns every request awaiting an answer for conn (the
// client disconnected) so the caller can tell their agents to cancel,
// then removes them from both indices.
func (t *PendingTable) DropClient(conn ConnID) []*PendingRequest {
	var out []*PendingRequest
	for _, p := range t.byClient {
		if p.ClientConn == conn {
			out = append(out, p)
		}
	}
	for _, p := range out {
		t.Remove(p)
	}
	delete(t.perConn, conn)
	return out
}

// DropAgent returns every request that was awaiting an answer from conn
// (the agent disconnected) so the caller can resolve them as DENY, then
// removes them from both indices.
func (t *PendingTable) DropAgent(conn ConnID) []*PendingRequest {
	var out []*PendingRequest
	for _, p := range t.byAgent {
		if p.AgentConn == conn {
			out = append(out, p)
		}
	}
	for _, p := range out {
		t.Remove(p)
	}
	return out
}

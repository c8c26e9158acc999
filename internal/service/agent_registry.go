package service

import "github.com/privd/privd/internal/apperr"

// ConnID identifies a connection as the inbound reactor numbers it; the
// service layer never interprets it beyond using it as an opaque key.
type ConnID uint64

// AgentRegistry binds each agent-type to the single connection that owns
// it (§4.9 agent registration: "only one registration per agent-type is
// permitted; a dying agent's type becomes free"), and hands out the
// bounded agent-talker sequence numbers the router uses to correlate
// AgentActionReq round-trips on that connection.
type AgentRegistry struct {
	connOf map[string]ConnID
	typeOf map[ConnID]string
	seqs   map[ConnID]*seqPool
}

// NewAgentRegistry returns an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{
		connOf: make(map[string]ConnID),
		typeOf: make(map[ConnID]string),
		seqs:   make(map[ConnID]*seqPool),
	}
}

// Register claims agentType for conn. It fails with OperationNotAllowed
// if another connection already owns it.
func (a *AgentRegistry) Register(conn ConnID, agentType string) error {
	if owner, ok := a.connOf[agentType]; ok && owner != conn {
		return apperr.New(apperr.CodeOperationNotAllowed, "agent type already registered: "+agentType)
	}
	a.connOf[agentType] = conn
	a.typeOf[conn] = agentType
	if _, ok := a.seqs[conn]; !ok {
		a.seqs[conn] = newSeqPool()
	}
	return nil
}

// ConnFor returns the connection currently owning agentType.
func (a *AgentRegistry) ConnFor(agentType string) (ConnID, bool) {
	c, ok := a.connOf[agentType]
	return c, ok
}

// AcquireSeq allocates the next agent-talker id on conn's sequence pool.
func (a *AgentRegistry) AcquireSeq(conn ConnID) (uint16, error) {
	p, ok := a.seqs[conn]
	if !ok {
		p = newSeqPool()
		a.seqs[conn] = p
	}
	return p.Acquire()
}

// ReleaseSeq returns seq to conn's pool.
func (a *AgentRegistry) ReleaseSeq(conn ConnID, seq uint16) {
	if p, ok := a.seqs[conn]; ok {
		p.Release(seq)
	}
}

// Drop frees whatever agent-type conn owned, making it available to the
// next registrant (§4.9: "a dying agent's type becomes free").
func (a *AgentRegistry) Drop(conn ConnID) {
	if t, ok := a.typeOf[conn]; ok {
		delete(a.connOf, t)
		delete(a.typeOf, conn)
	}
	delete(a.seqs, conn)
}

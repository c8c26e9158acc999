package service

import "github.com/privd/privd/internal/apperr"

// seqPool is the bounded 16-bit free-list sequence allocator §4.9
// describes: "allocated by a bounded pool (free list). When the pool is
// exhausted a client sees MaxPendingRequests." The daemon runs one
// instance per agent connection, handing out agent-talker ids for
// AgentActionReq frames; ids return to the pool only once the
// corresponding PendingRequest is fully resolved (§4.9: "returned to the
// pool only when the client-visible life of the request ends").
type seqPool struct {
	free []uint16
	next uint32
}

const seqPoolLimit = 1 << 16

func newSeqPool() *seqPool {
	return &seqPool{}
}

// Acquire hands out the next available sequence number.
func (p *seqPool) Acquire() (uint16, error) {
	if n := len(p.free); n > 0 {
		seq := p.free[n-1]
		p.free = p.free[:n-1]
		return seq, nil
	}
	if p.next >= seqPoolLimit {
		return 0, apperr.New(apperr.CodeMaxPendingRequests, "agent sequence pool exhausted")
	}
	seq := uint16(p.next)
	p.next++
	return seq, nil
}

// Release returns seq to the pool.
func (p *seqPool) Release(seq uint16) {
	p.free = append(p.free, seq)
}

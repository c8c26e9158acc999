package privdclient

// seqPool is a bounded 16-bit free-list allocator for RequestIDs, the same
// shape as the daemon's own internal/service/seqpool.go: a released id is
// reused first (most recently released first), and fresh ids are handed
// out monotonically only while the free list is empty, so a long-lived
// client doesn't leak ids as requests resolve.
type seqPool struct {
	free []uint16
	next uint32
}

const seqPoolLimit = 1 << 16

func newSeqPool() *seqPool {
	return &seqPool{}
}

// Acquire hands out the next available sequence number, or reports
// exhaustion once both the free list is empty and every id in [0, 1<<16)
// has been handed out at least once without being released.
func (p *seqPool) Acquire() (uint16, bool) {
	if n := len(p.free); n > 0 {
		seq := p.free[n-1]
		p.free = p.free[:n-1]
		return seq, true
	}
	if p.next >= seqPoolLimit {
		return 0, false
	}
	seq := uint16(p.next)
	p.next++
	return seq, true
}

// Release returns seq to the pool.
func (p *seqPool) Release(seq uint16) {
	p.free = append(p.free, seq)
}

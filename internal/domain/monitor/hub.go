// Package monitor implements the bounded decision-audit ring and its
// multi-subscriber fan-out (§4.11). Entry ids are a monotonically
// increasing counter stored modulo the ring's capacity, rather than the
// bucket-of-buckets structure of the original design: both satisfy the
// same liveness/safety invariants (§8 properties 9-10), and the
// monotonic-id ring is the simpler Go-native shape.
package monitor

import (
	"sync"

	"github.com/privd/privd/internal/domain/policy"
)

// Entry is one audited decision (§3 MonitorEntry): appended by the
// service router for every ALLOW or DENY it answers, and for each entry a
// client reports through MonitorEntriesPut. TraceID is
// a log-correlation identifier, not part of the wire representation
// (§4.7's MonitorEntryWire carries only key/decision/timestamp); callers
// that care about tying a monitor entry back to a specific log line set
// it, everything else leaves it empty.
type Entry struct {
	Key      policy.Key
	Decision policy.Type // DENY or ALLOW
	Sec      int64
	Nsec     int64
	TraceID  string
}

type subscriber struct {
	cursor     uint64
	bufferSize uint64
}

// Hub is a bounded ring of Entry plus a per-subscriber cursor record
// (§3 MonitorEntry, §4.11).
type Hub struct {
	mu          sync.Mutex
	capacity    uint64
	ring        []Entry
	nextID      uint64
	subscribers map[string]*subscriber
}

// NewHub returns a hub retaining at most capacity entries.
func NewHub(capacity int) *Hub {
	return &Hub{
		capacity:    uint64(capacity),
		ring:        make([]Entry, capacity),
		subscribers: make(map[string]*subscriber),
	}
}

// frontIDLocked returns the oldest entry id still retained by the ring.
func (h *Hub) frontIDLocked() uint64 {
	if h.nextID <= h.capacity {
		return 0
	}
	return h.nextID - h.capacity
}

// Append adds entry, overwriting the oldest slot once the ring is full,
// and advances any cursor that pointed at a now-evicted position up to
// the new front (§4.11: "advances every cursor that pointed at evicted
// positions to the new front").
func (h *Hub) Append(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.ring[id%h.capacity] = e
	h.nextID++

	front := h.frontIDLocked()
	for _, s := range h.subscribers {
		if s.cursor < front {
			s.cursor = front
		}
	}
}

// Subscribe registers id at the current back: only entries appended after
// this call are visible to it (§4.11).
func (h *Hub) Subscribe(id string, bufferSize int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = &subscriber{cursor: h.nextID, bufferSize: uint64(bufferSize)}
}

// Unsubscribe removes id without returning any pending entries.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, id)
}

// Fetch returns the entries accumulated since id's cursor. If fewer than
// its bufferSize have accumulated and force is false, it returns (nil,
// true) and id remains subscribed, waiting for more. ok is false only if
// id is not a registered subscriber.
func (h *Hub) Fetch(id string, force bool) (entries []Entry, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.subscribers[id]
	if !ok {
		return nil, false
	}
	available := h.nextID - s.cursor
	if available < s.bufferSize && !force {
		return nil, true
	}
	out := h.collectLocked(s.cursor, h.nextID)
	s.cursor = h.nextID
	return out, true
}

// Flush is Fetch(force=true) followed by Unsubscribe.
func (h *Hub) Flush(id string) (entries []Entry, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.subscribers[id]
	if !ok {
		return nil, false
	}
	out := h.collectLocked(s.cursor, h.nextID)
	delete(h.subscribers, id)
	return out, true
}

func (h *Hub) collectLocked(from, to uint64) []Entry {
	if front := h.frontIDLocked(); from < front {
		from = front
	}
	out := make([]Entry, 0, to-from)
	for id := from; id < to; id++ {
		out = append(out, h.ring[id%h.capacity])
	}
	return out
}

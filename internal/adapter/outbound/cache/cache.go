// Package cache implements the per-connection decision cache of §4.10: a
// capacity-bounded LRU of (session, key) -> (result, plugin-generation),
// invalidated lazily when a plugin's generation counter advances.
package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/privd/privd/internal/domain/policy"
)

// Status is the outcome of a Get call.
type Status int

const (
	// Miss means no entry exists for (session, key).
	Miss Status = iota
	// Hit means a fresh entry was found and returned.
	Hit
	// Stale means the entry existed but its plugin generation no longer
	// matches; it has been removed and the caller should treat this as a
	// Miss.
	Stale
)

// GenerationSource supplies the current generation counter for a plugin
// policy type; the decision cache consults it without owning plugin
// state itself (the plugin registry remains the single source of truth).
type GenerationSource interface {
	Generation(t policy.Type) uint64
}

type entry struct {
	key        uint64
	result     policy.Result
	generation uint64
	prev, next *entry
}

// Cache is a doubly-linked-list LRU keyed by an xxhash digest of
// (session, key), sized for one connection's lifetime.
type Cache struct {
	mu         sync.Mutex
	entries    map[uint64]*entry
	head, tail *entry
	capacity   int
}

// New returns an empty cache bounded to capacity entries.
func New(capacity int) *Cache {
	return &Cache{entries: make(map[uint64]*entry, capacity), capacity: capacity}
}

func computeKey(session string, key policy.Key) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(session)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(key.Client)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(key.User)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(key.Privilege)
	return h.Sum64()
}

func generationOf(r policy.Result, gens GenerationSource) uint64 {
	if r.Type.IsPlugin() {
		return gens.Generation(r.Type)
	}
	// DENY/ALLOW entries carry the built-in generation, which never
	// changes (§4.10).
	return 0
}

// Get looks up (session, key). A Stale result (generation mismatch) is
// removed before returning, so a subsequent Get is a plain Miss.
func (c *Cache) Get(session string, key policy.Key, gens GenerationSource) (policy.Result, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := computeKey(session, key)
	e, ok := c.entries[k]
	if !ok {
		return policy.Result{}, Miss
	}
	if e.generation != generationOf(e.result, gens) {
		c.removeLocked(e)
		return policy.Result{}, Stale
	}
	c.moveToHeadLocked(e)
	return e.result, Hit
}

// Put records result under (session, key) at the generation current at
// time of entry.
func (c *Cache) Put(session string, key policy.Key, result policy.Result, gens GenerationSource) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := computeKey(session, key)
	gen := generationOf(result, gens)

	if e, ok := c.entries[k]; ok {
		e.result = result
		e.generation = gen
		c.moveToHeadLocked(e)
		return
	}
	if len(c.entries) >= c.capacity {
		c.evictTailLocked()
	}
	e := &entry{key: k, result: result, generation: gen}
	c.entries[k] = e
	c.pushHeadLocked(e)
}

// InvalidateAll drops every entry; called on reconnect and whenever the
// store is mutated (§4.10, §4.2).
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*entry, c.capacity)
	c.head, c.tail = nil, nil
}

// Size reports the current entry count.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) moveToHeadLocked(e *entry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *Cache) pushHeadLocked(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) unlinkLocked(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *Cache) removeLocked(e *entry) {
	delete(c.entries, e.key)
	c.unlinkLocked(e)
}

func (c *Cache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	c.removeLocked(c.tail)
}

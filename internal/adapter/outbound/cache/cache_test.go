package cache

import (
	"testing"

	"github.com/privd/privd/internal/domain/policy"
)

type fakeGenerations struct{ gens map[policy.Type]uint64 }

func (f fakeGenerations) Generation(t policy.Type) uint64 { return f.gens[t] }

func TestCacheMissThenHit(t *testing.T) {
	c := New(4)
	gens := fakeGenerations{gens: map[policy.Type]uint64{}}
	key := policy.Key{"c", "u", "p"}

	if _, status := c.Get("s1", key, gens); status != Miss {
		t.Fatalf("expected Miss before Put, got %v", status)
	}
	c.Put("s1", key, policy.ResultAllow, gens)
	result, status := c.Get("s1", key, gens)
	if status != Hit || result.Type != policy.Allow {
		t.Fatalf("expected Hit(ALLOW), got %v %v", status, result.Type)
	}
}

func TestCacheDistinguishesSessions(t *testing.T) {
	c := New(4)
	gens := fakeGenerations{gens: map[policy.Type]uint64{}}
	key := policy.Key{"c", "u", "p"}
	c.Put("s1", key, policy.ResultAllow, gens)

	if _, status := c.Get("s2", key, gens); status != Miss {
		t.Fatalf("expected a different session to miss, got %v", status)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	gens := fakeGenerations{gens: map[policy.Type]uint64{}}
	k1, k2, k3 := policy.Key{"c1", "u", "p"}, policy.Key{"c2", "u", "p"}, policy.Key{"c3", "u", "p"}

	c.Put("s", k1, policy.ResultAllow, gens)
	c.Put("s", k2, policy.ResultAllow, gens)
	// Touch k1 so k2 becomes the LRU victim.
	c.Get("s", k1, gens)
	c.Put("s", k3, policy.ResultAllow, gens)

	if _, status := c.Get("s", k2, gens); status != Miss {
		t.Fatalf("expected k2 to have been evicted, got %v", status)
	}
	if _, status := c.Get("s", k1, gens); status != Hit {
		t.Fatalf("expected k1 to survive eviction, got %v", status)
	}
	if c.Size() != 2 {
		t.Fatalf("expected capacity-bounded size 2, got %d", c.Size())
	}
}

func TestCacheStaleOnGenerationAdvance(t *testing.T) {
	c := New(4)
	const pluginType = policy.PluginTypeMin
	gens := fakeGenerations{gens: map[policy.Type]uint64{pluginType: 1}}
	key := policy.Key{"c", "u", "p"}

	c.Put("s", key, policy.Result{Type: pluginType}, gens)
	if _, status := c.Get("s", key, gens); status != Hit {
		t.Fatalf("expected Hit at the entry's own generation")
	}

	gens.gens[pluginType] = 2
	if _, status := c.Get("s", key, gens); status != Stale {
		t.Fatalf("expected Stale after the plugin generation advanced, got %v", status)
	}
	if _, status := c.Get("s", key, gens); status != Miss {
		t.Fatalf("expected the stale entry to be gone on the next Get, got %v", status)
	}
}

func TestCacheInvalidateAllClears(t *testing.T) {
	c := New(4)
	gens := fakeGenerations{gens: map[policy.Type]uint64{}}
	c.Put("s", policy.Key{"c", "u", "p"}, policy.ResultAllow, gens)
	c.InvalidateAll()
	if c.Size() != 0 {
		t.Fatalf("expected size 0 after InvalidateAll, got %d", c.Size())
	}
}

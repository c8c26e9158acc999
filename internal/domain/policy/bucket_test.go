package policy

import "testing"

func TestBucketInsertReplacesEqualKey(t *testing.T) {
	b, err := NewBucket(RootBucketID, ResultDeny)
	if err != nil {
		t.Fatalf("NewBucket: %v", err)
	}
	key := Key{"c", "u", "p"}
	b.Insert(Policy{Key: key, Result: ResultAllow})
	b.Insert(Policy{Key: key, Result: ResultDeny})
	if got, _ := b.Lookup(key); got.Result.Type != Deny {
		t.Fatalf("second insert with equal key must replace the first, got %v", got.Result.Type)
	}
	if b.Len() != 1 {
		t.Fatalf("expected exactly one policy, got %d", b.Len())
	}
}

func TestBucketBestAppliesTieBreak(t *testing.T) {
	b, _ := NewBucket(RootBucketID, ResultDeny)
	b.Insert(Policy{Key: Key{"c", Wildcard, "p"}, Result: ResultAllow})
	b.Insert(Policy{Key: Key{"c", "u1", "p"}, Result: ResultDeny})

	best, ok := b.Best(Key{"c", "u1", "p"})
	if !ok || best.Result.Type != Deny {
		t.Fatalf("expected the literal-user policy to win, got %+v ok=%v", best, ok)
	}

	best, ok = b.Best(Key{"c", "u2", "p"})
	if !ok || best.Result.Type != Allow {
		t.Fatalf("expected the wildcard-user policy to win for a different user, got %+v ok=%v", best, ok)
	}
}

func TestBucketBestNoCandidatesFallsBackToDefault(t *testing.T) {
	b, _ := NewBucket(RootBucketID, ResultDeny)
	if _, ok := b.Best(Key{"c", "u", "p"}); ok {
		t.Fatalf("expected no candidates in an empty bucket")
	}
}

func TestBucketRemoveMatchingCountsRemovals(t *testing.T) {
	b, _ := NewBucket(RootBucketID, ResultDeny)
	b.Insert(Policy{Key: Key{"c1", "u", "p"}, Result: ResultBucket("b1")})
	b.Insert(Policy{Key: Key{"c2", "u", "p"}, Result: ResultBucket("b2")})
	b.Insert(Policy{Key: Key{"c3", "u", "p"}, Result: ResultAllow})

	removed := b.RemoveMatching(func(p Policy) bool { return p.Result.Type == Bucket })
	if removed != 2 {
		t.Fatalf("expected 2 BUCKET policies removed, got %d", removed)
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 policy remaining, got %d", b.Len())
	}
}

func TestBucketListOrderedAndAnyAware(t *testing.T) {
	b, _ := NewBucket(RootBucketID, ResultDeny)
	b.Insert(Policy{Key: Key{"c2", "u", "p"}, Result: ResultAllow})
	b.Insert(Policy{Key: Key{"c1", Wildcard, "p"}, Result: ResultDeny})

	all := b.List(Key{Any, Any, Any})
	if len(all) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(all))
	}
	if all[0].Key.Client != "c1" || all[1].Key.Client != "c2" {
		t.Fatalf("expected policies ordered by key string, got %+v", all)
	}

	wildcardOnly := b.List(Key{Any, Wildcard, Any})
	if len(wildcardOnly) != 1 || wildcardOnly[0].Key.Client != "c1" {
		t.Fatalf("expected only the wildcard-user policy, got %+v", wildcardOnly)
	}
}

func TestBucketSubbucketIDs(t *testing.T) {
	b, _ := NewBucket(RootBucketID, ResultDeny)
	b.Insert(Policy{Key: Key{"c1", "u", "p"}, Result: ResultBucket("b1")})
	b.Insert(Policy{Key: Key{"c2", "u", "p"}, Result: ResultBucket("b2")})
	b.Insert(Policy{Key: Key{"c3", "u", "p"}, Result: ResultAllow})

	ids := b.SubbucketIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 subbucket ids, got %d", len(ids))
	}
	if _, ok := ids["b1"]; !ok {
		t.Fatalf("expected b1 in subbucket ids")
	}
}

func TestNewBucketRejectsBucketDefault(t *testing.T) {
	if _, err := NewBucket("x", ResultBucket("b1")); err == nil {
		t.Fatalf("expected error constructing a bucket with a BUCKET default")
	}
}

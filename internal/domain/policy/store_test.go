package policy

import (
	"errors"
	"testing"

	"github.com/privd/privd/internal/apperr"
)

func TestNewStoreHasRootBucket(t *testing.T) {
	s := NewStore()
	root, ok := s.Bucket(RootBucketID)
	if !ok {
		t.Fatalf("expected root bucket to exist")
	}
	if root.Default().Type != Deny {
		t.Fatalf("expected root default DENY, got %v", root.Default().Type)
	}
}

func TestDeleteBucketRejectsRoot(t *testing.T) {
	s := NewStore()
	err := s.DeleteBucket(RootBucketID)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Code != apperr.CodeOperationNotAllowed {
		t.Fatalf("expected OperationNotAllowed deleting root, got %v", err)
	}
}

func TestDeleteBucketCascadesLinkingPolicies(t *testing.T) {
	s := NewStore()
	if err := s.CreateBucket("sub", ResultDeny); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	root, _ := s.Bucket(RootBucketID)
	root.Insert(Policy{Key: Key{"c", "u", "p"}, Result: ResultBucket("sub")})

	if err := s.DeleteBucket("sub"); err != nil {
		t.Fatalf("DeleteBucket: %v", err)
	}
	if _, ok := root.Lookup(Key{"c", "u", "p"}); ok {
		t.Fatalf("expected the linking policy to be removed along with its target bucket")
	}
}

func TestCreateBucketRejectsCollision(t *testing.T) {
	s := NewStore()
	if err := s.CreateBucket("b1", ResultDeny); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	if err := s.CreateBucket("b1", ResultAllow); err == nil {
		t.Fatalf("expected error creating a bucket with a colliding id")
	}
}

func TestUpdateBucketDefaultRejectsRootNone(t *testing.T) {
	s := NewStore()
	if err := s.UpdateBucketDefault(RootBucketID, ResultNone); err == nil {
		t.Fatalf("expected error setting root default to NONE")
	}
}

func TestInsertPoliciesAtomicAcrossBatch(t *testing.T) {
	s := NewStore()
	edits := []PolicyEdit{
		{BucketID: RootBucketID, Policies: []Policy{{Key: Key{"c", "u", "p"}, Result: ResultAllow}}},
		{BucketID: "missing", Policies: []Policy{{Key: Key{"c", "u", "p"}, Result: ResultAllow}}},
	}
	if err := s.InsertPolicies(edits); err == nil {
		t.Fatalf("expected error for a batch referencing a missing bucket")
	}
	root, _ := s.Bucket(RootBucketID)
	if root.Len() != 0 {
		t.Fatalf("expected no partial application when one edit in the batch fails, got %d policies", root.Len())
	}
}

func TestDanglingLinksDetection(t *testing.T) {
	s := NewStore()
	root, _ := s.Bucket(RootBucketID)
	root.Insert(Policy{Key: Key{"c", "u", "p"}, Result: ResultBucket("ghost")})

	dangling := s.DanglingLinks()
	if len(dangling) != 1 {
		t.Fatalf("expected 1 dangling link, got %d: %v", len(dangling), dangling)
	}
}

func TestEraseRecursiveIsCycleSafe(t *testing.T) {
	s := NewStore()
	if err := s.CreateBucket("a", ResultDeny); err != nil {
		t.Fatalf("CreateBucket a: %v", err)
	}
	if err := s.CreateBucket("b", ResultDeny); err != nil {
		t.Fatalf("CreateBucket b: %v", err)
	}
	root, _ := s.Bucket(RootBucketID)
	root.Insert(Policy{Key: Key{"c", "u", "p"}, Result: ResultBucket("a")})
	bucketA, _ := s.Bucket("a")
	bucketA.Insert(Policy{Key: Key{"c2", "u", "p"}, Result: ResultBucket("b")})
	bucketB, _ := s.Bucket("b")
	// Cycle: b links back to root.
	bucketB.Insert(Policy{Key: Key{"c3", "u", "p"}, Result: ResultBucket(RootBucketID)})
	bucketB.Insert(Policy{Key: Key{"c4", "u", "p"}, Result: ResultAllow})

	removed, err := s.Erase(RootBucketID, true, Key{Any, Any, Any})
	if err != nil {
		t.Fatalf("Erase: %v", err)
	}
	// c,u,p (root->a link) + c2,u,p (a->b link) + c3,u,p (b->root link) + c4,u,p (allow) = 4
	if removed != 4 {
		t.Fatalf("expected 4 policies erased across the cyclic graph, got %d", removed)
	}
}

func TestEraseNonRecursiveOnlyTouchesStartBucket(t *testing.T) {
	s := NewStore()
	if err := s.CreateBucket("a", ResultDeny); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	root, _ := s.Bucket(RootBucketID)
	root.Insert(Policy{Key: Key{"c", "u", "p"}, Result: ResultBucket("a")})
	bucketA, _ := s.Bucket("a")
	bucketA.Insert(Policy{Key: Key{"c2", "u", "p"}, Result: ResultAllow})

	removed, err := s.Erase(RootBucketID, false, Key{Any, Any, Any})
	if err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected only the root bucket's own policy erased, got %d", removed)
	}
	if bucketA.Len() != 1 {
		t.Fatalf("non-recursive erase must not touch linked buckets")
	}
}

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/privd/privd/internal/domain/policy"
)

func newTestLayer(t *testing.T) *Layer {
	t.Helper()
	dir := t.TempDir()
	l, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestSaveLoadRoundTrip(t *testing.T) {
	l := newTestLayer(t)
	store := policy.NewStore()
	if err := store.CreateBucket("sub", policy.ResultAllow); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	root, _ := store.Bucket(policy.RootBucketID)
	root.Insert(policy.Policy{Key: policy.Key{"c", "u", "p"}, Result: policy.ResultBucket("sub")})
	root.Insert(policy.Policy{Key: policy.Key{"c", policy.Wildcard, "p2"}, Result: policy.ResultDeny})

	if err := l.Save(store); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.BucketIDs()[0] != policy.RootBucketID {
		t.Fatalf("expected root bucket present after load")
	}
	loadedRoot, _ := loaded.Bucket(policy.RootBucketID)
	p, ok := loadedRoot.Lookup(policy.Key{"c", "u", "p"})
	if !ok || p.Result.Type != policy.Bucket || p.Result.Metadata != "sub" {
		t.Fatalf("expected the BUCKET link policy to round-trip, got %+v ok=%v", p, ok)
	}
	sub, ok := loaded.Bucket("sub")
	if !ok || sub.Default().Type != policy.Allow {
		t.Fatalf("expected sub bucket with ALLOW default to round-trip, ok=%v", ok)
	}
}

func TestLoadFreshDirectoryReturnsRootOnlyStore(t *testing.T) {
	l := newTestLayer(t)
	store, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !store.HasBucket(policy.RootBucketID) {
		t.Fatalf("expected a fresh store to contain the root bucket")
	}
}

func TestLoadDetectsChecksumMismatch(t *testing.T) {
	l := newTestLayer(t)
	store := policy.NewStore()
	root, _ := store.Bucket(policy.RootBucketID)
	root.Insert(policy.Policy{Key: policy.Key{"c", "u", "p"}, Result: policy.ResultAllow})
	if err := l.Save(store); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Corrupt the root bucket file in place without updating its checksum.
	bucketPath := filepath.Join(l.dir, bucketFileName(policy.RootBucketID))
	if err := os.WriteFile(bucketPath, []byte("tampered;data;here;0x0000;\n"), 0600); err != nil {
		t.Fatalf("corrupt bucket file: %v", err)
	}

	if _, err := l.Load(); err == nil {
		t.Fatalf("expected a checksum mismatch error after tampering with a bucket file")
	}
}

func TestSaveRejectsDanglingLinks(t *testing.T) {
	l := newTestLayer(t)
	store := policy.NewStore()
	root, _ := store.Bucket(policy.RootBucketID)
	root.Insert(policy.Policy{Key: policy.Key{"c", "u", "p"}, Result: policy.ResultBucket("ghost")})

	if err := l.Save(store); err == nil {
		t.Fatalf("expected Save to refuse a store with a dangling bucket link")
	}
}

func TestCrashBetweenGuardAndRenameRecovers(t *testing.T) {
	// E6: apply an admin write, simulate a crash between guard creation
	// and rename completion by leaving "~" files and "guard" behind while
	// the primary files still hold the pre-write state.
	l := newTestLayer(t)
	preCrash := policy.NewStore()
	if err := l.Save(preCrash); err != nil {
		t.Fatalf("initial Save: %v", err)
	}

	postWrite := policy.NewStore()
	root, _ := postWrite.Bucket(policy.RootBucketID)
	root.Insert(policy.Policy{Key: policy.Key{"c", "u", "p"}, Result: policy.ResultAllow})

	// Manually perform steps 1-4 of the save protocol for postWrite,
	// stopping before the renames in step 5 — this is the crash window.
	digest, err := l.writeTemp(indexFileName, joinLines([]string{encodeIndexLine(policy.RootBucketID, root.Default())}))
	if err != nil {
		t.Fatalf("writeTemp index: %v", err)
	}
	bDigest, err := l.writeTemp(bucketFileName(policy.RootBucketID), joinLines([]string{encodePolicyLine(root.Snapshot()[0])}))
	if err != nil {
		t.Fatalf("writeTemp bucket: %v", err)
	}
	checksumLines := []string{
		indexFileName + ";sha256;" + digest,
		bucketFileName(policy.RootBucketID) + ";sha256;" + bDigest,
	}
	if _, err := l.writeTemp(checksumFileName, joinLines(checksumLines)); err != nil {
		t.Fatalf("writeTemp checksum: %v", err)
	}
	if err := os.WriteFile(l.path(guardFileName), nil, 0600); err != nil {
		t.Fatalf("write guard: %v", err)
	}

	loaded, err := l.Load()
	if err != nil {
		t.Fatalf("Load after simulated crash: %v", err)
	}
	loadedRoot, _ := loaded.Bucket(policy.RootBucketID)
	if _, ok := loadedRoot.Lookup(policy.Key{"c", "u", "p"}); !ok {
		t.Fatalf("expected the post-write state to be recovered from the guarded backup")
	}
	if _, err := os.Stat(l.path(guardFileName)); !os.IsNotExist(err) {
		t.Fatalf("expected the guard file to be removed after recovery")
	}
	if _, err := os.Stat(l.path(indexFileName + tempSuffix)); !os.IsNotExist(err) {
		t.Fatalf("expected no leftover temp files after recovery")
	}
}

func TestSecondOpenOfSameDirectoryFailsFast(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer first.Close()

	if _, err := Open(dir, nil); err == nil {
		t.Fatalf("expected a second Open of the same directory to fail fast")
	}
}

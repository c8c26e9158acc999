package policy

import (
	"sort"

	"github.com/privd/privd/internal/apperr"
)

// Store is the mapping bucket-id → Bucket (§4.2), plus the invariants that
// keep bucket links coherent: the root bucket always exists and cannot be
// removed, and no mutation is allowed to leave a dangling BUCKET link at
// persistence time.
//
// Store is not safe for concurrent use; the single-threaded reactor loop
// serialises every mutation (§5).
type Store struct {
	buckets map[string]*Bucket
}

// NewStore returns a store containing only the root bucket, defaulting to
// Deny.
func NewStore() *Store {
	root, _ := NewBucket(RootBucketID, ResultDeny)
	return &Store{buckets: map[string]*Bucket{RootBucketID: root}}
}

// NewStoreFromBuckets builds a store directly from already-constructed
// buckets. It is used by the persistence layer after a successful load.
// If no root bucket is present among buckets, one is created with default
// Deny (§4.6 load protocol: "if the root bucket is absent from a
// successfully loaded index, create it with default DENY").
func NewStoreFromBuckets(buckets map[string]*Bucket) *Store {
	s := &Store{buckets: buckets}
	if s.buckets == nil {
		s.buckets = make(map[string]*Bucket)
	}
	if !s.HasBucket(RootBucketID) {
		root, _ := NewBucket(RootBucketID, ResultDeny)
		s.buckets[RootBucketID] = root
	}
	return s
}

// Bucket returns the bucket with the given id.
func (s *Store) Bucket(id string) (*Bucket, bool) {
	b, ok := s.buckets[id]
	return b, ok
}

// HasBucket reports whether a bucket with the given id exists.
func (s *Store) HasBucket(id string) bool {
	_, ok := s.buckets[id]
	return ok
}

// BucketIDs returns every bucket id, sorted, for deterministic
// serialisation and enumeration.
func (s *Store) BucketIDs() []string {
	ids := make([]string, 0, len(s.buckets))
	for id := range s.buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreateBucket adds a new, empty bucket. It fails with OperationFailed if a
// bucket with the same id already exists, and rejects a BUCKET default.
func (s *Store) CreateBucket(id string, def Result) error {
	if s.HasBucket(id) {
		return apperr.New(apperr.CodeOperationFailed, "bucket already exists: "+id)
	}
	b, err := NewBucket(id, def)
	if err != nil {
		return err
	}
	s.buckets[id] = b
	return nil
}

// UpdateBucketDefault changes an existing bucket's default result. It
// rejects a BUCKET default, and rejects setting the root bucket's default
// to NONE (the root has no referrer to defer to).
func (s *Store) UpdateBucketDefault(id string, def Result) error {
	b, ok := s.buckets[id]
	if !ok {
		return apperr.New(apperr.CodeBucketNotExists, id)
	}
	if id == RootBucketID && def.Type == None {
		return apperr.New(apperr.CodeInvalidParam, "root bucket default may not be NONE")
	}
	return b.SetDefault(def)
}

// DeleteBucket removes a bucket. It rejects the root bucket, and cascades
// by removing every BUCKET policy, in every remaining bucket, whose
// metadata names the deleted id.
func (s *Store) DeleteBucket(id string) error {
	if id == RootBucketID {
		return apperr.New(apperr.CodeOperationNotAllowed, "root bucket cannot be deleted")
	}
	if !s.HasBucket(id) {
		return apperr.New(apperr.CodeBucketNotExists, id)
	}
	delete(s.buckets, id)
	for _, b := range s.buckets {
		b.RemoveMatching(func(p Policy) bool {
			return p.Result.Type == Bucket && p.Result.Metadata == id
		})
	}
	return nil
}

// PolicyEdit is a single entry of an InsertPolicies/DeletePolicies batch:
// the target bucket id plus the policies or keys to apply there.
type PolicyEdit struct {
	BucketID string
	Policies []Policy
}

// KeyEdit mirrors PolicyEdit for deletions, which only need the key.
type KeyEdit struct {
	BucketID string
	Keys     []Key
}

// InsertPolicies applies a batch of policy insertions atomically: either
// every edit validates and applies, or none do (§4.2). Validation covers
// target bucket existence, stored-key well-formedness, and result
// well-formedness; it does not require BUCKET-link targets to already
// exist, since a batch may create the target bucket in the same admin
// write (link integrity is instead checked at persistence time).
func (s *Store) InsertPolicies(edits []PolicyEdit) error {
	for _, e := range edits {
		if !s.HasBucket(e.BucketID) {
			return apperr.New(apperr.CodeBucketNotExists, e.BucketID)
		}
		for _, p := range e.Policies {
			if err := p.Key.ValidateStored(); err != nil {
				return err
			}
			if err := p.Result.ValidateAsPolicy(); err != nil {
				return err
			}
		}
	}
	for _, e := range edits {
		b := s.buckets[e.BucketID]
		for _, p := range e.Policies {
			b.Insert(p)
		}
	}
	return nil
}

// DeletePolicies applies a batch of policy removals atomically.
func (s *Store) DeletePolicies(edits []KeyEdit) error {
	for _, e := range edits {
		if !s.HasBucket(e.BucketID) {
			return apperr.New(apperr.CodeBucketNotExists, e.BucketID)
		}
	}
	for _, e := range edits {
		b := s.buckets[e.BucketID]
		for _, k := range e.Keys {
			b.Remove(k)
		}
	}
	return nil
}

// DanglingLinks returns every (bucketID, targetID) pair where bucketID
// holds a BUCKET policy naming a bucket that does not exist. The
// persistence layer calls this before a save completes (§4.2: "no bucket
// contains a BUCKET policy whose metadata names a non-existent bucket at
// persistence time").
func (s *Store) DanglingLinks() []string {
	var dangling []string
	for id, b := range s.buckets {
		for target := range b.SubbucketIDs() {
			if !s.HasBucket(target) {
				dangling = append(dangling, id+" -> "+target)
			}
		}
	}
	sort.Strings(dangling)
	return dangling
}

// Erase removes policies matching filter from start, and, if recursive,
// from every bucket reachable from start via BUCKET links (cycle-safe via
// a visited set). It returns the total count removed.
func (s *Store) Erase(start string, recursive bool, filter Key) (int, error) {
	if !s.HasBucket(start) {
		return 0, apperr.New(apperr.CodeBucketNotExists, start)
	}
	removed := 0
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		b, ok := s.buckets[id]
		if !ok {
			continue
		}
		var subbuckets map[string]struct{}
		if recursive {
			subbuckets = b.SubbucketIDs()
		}
		removed += b.RemoveMatching(func(p Policy) bool { return filter.FilterMatches(p.Key) })
		for target := range subbuckets {
			if !visited[target] {
				visited[target] = true
				queue = append(queue, target)
			}
		}
	}
	return removed, nil
}

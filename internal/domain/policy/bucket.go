package policy

// Bucket is an ordered, indexed set of policies plus a default result and a
// stable id (§4.1). The empty id names the single root bucket, which
// always exists and can never be removed.
type Bucket struct {
	id       string
	def      Result
	policies map[Key]Policy
}

// RootBucketID is the id of the bucket that always exists and cannot be
// deleted.
const RootBucketID = ""

// NewBucket constructs a bucket with the given id and default result. def
// must not be a BUCKET link.
func NewBucket(id string, def Result) (*Bucket, error) {
	if err := def.ValidateAsDefault(); err != nil {
		return nil, err
	}
	return &Bucket{id: id, def: def, policies: make(map[Key]Policy)}, nil
}

// ID returns the bucket's stable identifier.
func (b *Bucket) ID() string { return b.id }

// Default returns the bucket's default result, returned by Check when no
// stored policy matches the query key.
func (b *Bucket) Default() Result { return b.def }

// SetDefault replaces the bucket's default. def must not be a BUCKET link;
// the caller (PolicyStore) additionally rejects NONE for the root bucket.
func (b *Bucket) SetDefault(def Result) error {
	if err := def.ValidateAsDefault(); err != nil {
		return err
	}
	b.def = def
	return nil
}

// Len reports how many policies the bucket holds.
func (b *Bucket) Len() int { return len(b.policies) }

// Insert replaces any existing policy with an equal key; O(1) expected.
func (b *Bucket) Insert(p Policy) {
	b.policies[p.Key] = p
}

// Lookup returns the policy stored under the exact key, if any.
func (b *Bucket) Lookup(key Key) (Policy, bool) {
	p, ok := b.policies[key]
	return p, ok
}

// Remove deletes the policy stored under the exact key. It reports whether
// a policy was removed.
func (b *Bucket) Remove(key Key) bool {
	if _, ok := b.policies[key]; !ok {
		return false
	}
	delete(b.policies, key)
	return true
}

// RemoveMatching deletes every policy for which pred returns true,
// returning the count removed.
func (b *Bucket) RemoveMatching(pred func(Policy) bool) int {
	removed := 0
	for k, p := range b.policies {
		if pred(p) {
			delete(b.policies, k)
			removed++
		}
	}
	return removed
}

// Candidates returns every stored policy whose key matches the literal
// query key q under the wildcard rule of §4.4, unordered. Evaluator picks
// the single best candidate via Key.MoreSpecific.
func (b *Bucket) Candidates(q Key) []Policy {
	var out []Policy
	for k, p := range b.policies {
		if k.Matches(q) {
			out = append(out, p)
		}
	}
	return out
}

// Best returns the single most-specific policy matching q, or false if no
// stored policy matches (the bucket's default then applies).
func (b *Bucket) Best(q Key) (Policy, bool) {
	candidates := b.Candidates(q)
	if len(candidates) == 0 {
		return Policy{}, false
	}
	best := candidates[0]
	for _, p := range candidates[1:] {
		if p.Key.MoreSpecific(best.Key) {
			best = p
		}
	}
	return best, true
}

// List returns every policy whose stored key matches filter under the
// broader any-marker-aware semantics of §4.4, ordered by key for
// deterministic output. Used by admin list/erase, never by Check.
func (b *Bucket) List(filter Key) []Policy {
	var keys []Key
	for k := range b.policies {
		if filter.FilterMatches(k) {
			keys = append(keys, k)
		}
	}
	keys = sortedKeys(keys)
	out := make([]Policy, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.policies[k])
	}
	return out
}

// SubbucketIDs returns the set of bucket ids referenced by BUCKET policies
// stored directly in this bucket.
func (b *Bucket) SubbucketIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, p := range b.policies {
		if p.Result.Type == Bucket {
			ids[p.Result.Metadata] = struct{}{}
		}
	}
	return ids
}

// Snapshot returns every policy in the bucket, ordered by key.
func (b *Bucket) Snapshot() []Policy {
	return b.List(Key{Client: Any, User: Any, Privilege: Any})
}

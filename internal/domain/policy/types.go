// Package policy implements the bucketed policy store: the (client, user,
// privilege) key, the typed result it resolves to, the bucket that indexes
// policies by key, and the store owning every bucket.
package policy

import (
	"fmt"
	"sort"

	"github.com/privd/privd/internal/apperr"
)

// Type is the 16-bit policy-type tag carried by a Result. Values are stable
// on the wire and in the on-disk format; plugins register additional types
// in the open range [PluginTypeMin, PluginTypeMax].
type Type uint16

const (
	// Deny is a terminal result that refuses the privilege.
	Deny Type = 0
	// None means "this bucket abstains; defer to the calling bucket's
	// default" when reached mid-search, or surfaces as NONE for an
	// outermost check (see Evaluator.Check step 6).
	None Type = 1
	// Bucket links to another bucket by id, carried in Result.Metadata.
	Bucket Type = 0xFFFE
	// Allow is a terminal result that grants the privilege.
	Allow Type = 0xFFFF

	// PluginTypeMin and PluginTypeMax bound the open range available to
	// plugin-registered policy types.
	PluginTypeMin Type = 2
	PluginTypeMax Type = 0xFFFD
)

// IsPlugin reports whether t falls in the open range reserved for plugins.
func (t Type) IsPlugin() bool {
	return t >= PluginTypeMin && t <= PluginTypeMax
}

// IsTerminal reports whether t is one of the built-in terminal types that
// never requires further dispatch (Deny or Allow). None is deliberately
// excluded: it is terminal only at the outermost call.
func (t Type) IsTerminal() bool {
	return t == Deny || t == Allow
}

func (t Type) String() string {
	switch t {
	case Deny:
		return "DENY"
	case None:
		return "NONE"
	case Bucket:
		return "BUCKET"
	case Allow:
		return "ALLOW"
	default:
		return fmt.Sprintf("PLUGIN(0x%04X)", uint16(t))
	}
}

const (
	// Wildcard is the literal stored-slot value that matches any query
	// value in that slot.
	Wildcard = "*"
	// Any is the filter-only marker accepted by list/erase: it matches
	// both literal and wildcard stored slots. It is never consulted by
	// Check.
	Any = "**"
	// MaxSlotLen bounds every key slot.
	MaxSlotLen = 16 * 1024
)

// Key is the ordered 3-tuple (client, user, privilege) identifying a
// policy. The same type represents a stored key (slots may be literal or
// Wildcard), a query key (slots are always literal), and a filter key
// (slots may additionally be Any).
type Key struct {
	Client    string
	User      string
	Privilege string
}

// String renders k for logs and monitor entries.
func (k Key) String() string {
	return k.Client + ";" + k.User + ";" + k.Privilege
}

// ValidateQuery checks that every slot is non-empty, within MaxSlotLen, and
// not a reserved marker (query keys are always literal).
func (k Key) ValidateQuery() error {
	if err := k.validateSlots(); err != nil {
		return err
	}
	for _, s := range [3]string{k.Client, k.User, k.Privilege} {
		if s == Wildcard || s == Any {
			return apperr.New(apperr.CodeInvalidParam, "query key may not contain a wildcard or the any-marker")
		}
	}
	return nil
}

// validateSlots checks that every slot is non-empty and within MaxSlotLen.
func (k Key) validateSlots() error {
	slots := [3]struct {
		name, val string
	}{
		{"client", k.Client},
		{"user", k.User},
		{"privilege", k.Privilege},
	}
	for _, s := range slots {
		if s.val == "" {
			return apperr.New(apperr.CodeInvalidParam, s.name+" must not be empty")
		}
		if len(s.val) > MaxSlotLen {
			return apperr.New(apperr.CodeInvalidParam, s.name+" exceeds maximum length")
		}
	}
	return nil
}

// ValidateStored checks that every slot is non-empty and within
// MaxSlotLen; Wildcard is permitted, Any is not.
func (k Key) ValidateStored() error {
	if err := k.validateSlots(); err != nil {
		return err
	}
	for _, s := range [3]string{k.Client, k.User, k.Privilege} {
		if s == Any {
			return apperr.New(apperr.CodeInvalidParam, "stored key may not contain the any-marker")
		}
	}
	return nil
}

// Matches reports whether the stored key k matches the literal query key q
// under the wildcard rule of §4.4: a stored slot matches iff it equals the
// query slot or is Wildcard.
func (k Key) Matches(q Key) bool {
	return slotMatches(k.Client, q.Client) &&
		slotMatches(k.User, q.User) &&
		slotMatches(k.Privilege, q.Privilege)
}

func slotMatches(stored, query string) bool {
	return stored == query || stored == Wildcard
}

// Specificity counts the non-wildcard slots (0..3), the primary ranking
// used by the most-specific-wins tie-break.
func (k Key) Specificity() int {
	n := 0
	if k.Client != Wildcard {
		n++
	}
	if k.User != Wildcard {
		n++
	}
	if k.Privilege != Wildcard {
		n++
	}
	return n
}

// MoreSpecific reports whether k outranks other in the total order defined
// by §4.4: higher specificity wins; ties break by slot position, a literal
// client beating a literal user beating a literal privilege. Both keys are
// assumed to match the same query.
func (k Key) MoreSpecific(other Key) bool {
	ks, os := k.Specificity(), other.Specificity()
	if ks != os {
		return ks > os
	}
	if lit(k.Client) != lit(other.Client) {
		return lit(k.Client)
	}
	if lit(k.User) != lit(other.User) {
		return lit(k.User)
	}
	return lit(k.Privilege)
}

func lit(slot string) bool { return slot != Wildcard }

// FilterMatches implements the broader semantics used by the admin list and
// erase operations: a filter slot of Any matches any stored slot (literal
// or wildcard); any other filter slot must equal the stored slot exactly.
func (filter Key) FilterMatches(stored Key) bool {
	return filterSlotMatches(filter.Client, stored.Client) &&
		filterSlotMatches(filter.User, stored.User) &&
		filterSlotMatches(filter.Privilege, stored.Privilege)
}

func filterSlotMatches(filter, stored string) bool {
	if filter == Any {
		return true
	}
	return filter == stored
}

// Result is a policy's outcome: a type tag plus opaque metadata. For
// Bucket, Metadata is the link-target bucket id; for plugin types it is an
// opaque payload interpreted by that plugin; for Deny, Allow, and None it
// must be empty.
type Result struct {
	Type     Type
	Metadata string
}

// Built-in terminal results; these never carry metadata.
var (
	ResultDeny  = Result{Type: Deny}
	ResultAllow = Result{Type: Allow}
	ResultNone  = Result{Type: None}
)

// ResultBucket builds the Result of a bucket-link policy.
func ResultBucket(bucketID string) Result {
	return Result{Type: Bucket, Metadata: bucketID}
}

// ValidateAsPolicy enforces that terminal types carry no metadata; it does
// not reject Bucket, since bucket-link validity is a PolicyStore concern.
func (r Result) ValidateAsPolicy() error {
	switch r.Type {
	case Deny, Allow, None:
		if r.Metadata != "" {
			return apperr.New(apperr.CodeInvalidParam, "terminal policy type must not carry metadata")
		}
	}
	return nil
}

// ValidateAsDefault enforces that a bucket default is never a Bucket link
// (§4.1 invariant: default is terminal).
func (r Result) ValidateAsDefault() error {
	if r.Type == Bucket {
		return apperr.New(apperr.CodeInvalidParam, "bucket default may not be a BUCKET link")
	}
	return r.ValidateAsPolicy()
}

// Policy binds one stored key to its result within a single bucket.
type Policy struct {
	Key    Key
	Result Result
}

// sortedKeys returns ks ordered by Key.String(), for deterministic
// enumeration output.
func sortedKeys(ks []Key) []Key {
	out := append([]Key(nil), ks...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

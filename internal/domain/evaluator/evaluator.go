// Package evaluator implements the recursive bucket-search algorithm of
// §4.3: given a start bucket and a query key, it walks BUCKET links,
// applies the wildcard tie-break of §4.4, defers NONE results to the
// calling bucket, and dispatches non-terminal results to the plugin
// registry.
package evaluator

import (
	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/plugin"
	"github.com/privd/privd/internal/domain/policy"
)

// Evaluator is the pure-function core described by §8 invariant 3: its
// output for a given (store, plugin-state) pair never changes.
type Evaluator struct {
	store   *policy.Store
	plugins *plugin.Registry
}

// New returns an Evaluator over the given store and plugin registry. Both
// are shared, mutable references owned by the caller; the evaluator never
// mutates them (plugin Update aside, which is invoked explicitly via
// Resume).
func New(store *policy.Store, plugins *plugin.Registry) *Evaluator {
	return &Evaluator{store: store, plugins: plugins}
}

// Suspend carries the agent query needed to resume a check that could not
// be answered immediately (§4.9 ANSWER_NOTREADY).
type Suspend struct {
	AgentType  string
	Payload    string
	PolicyType policy.Type
}

// Outcome is the result of one evaluation attempt: either a decided,
// terminal policy result, or a Suspend the caller must route to an agent
// before the check can complete.
type Outcome struct {
	Decided bool
	Result  policy.Result
	Suspend *Suspend
}

func decided(r policy.Result) Outcome { return Outcome{Decided: true, Result: r} }

// Check implements §4.3 steps 1-8. recursive controls whether BUCKET
// results are followed (true) or treated as not-found (false, the
// simple-check variant).
func (e *Evaluator) Check(start string, recursive bool, key policy.Key) (Outcome, error) {
	maxVisits := len(e.store.BucketIDs()) + 1
	visited := map[string]bool{start: true}
	current := start
	var referrerDefaults []policy.Result

	for visits := 0; ; visits++ {
		if visits > maxVisits {
			return decided(policy.ResultDeny), apperr.New(apperr.CodeUnexpectedError, "evaluation exceeded the bucket visit bound")
		}

		b, ok := e.store.Bucket(current)
		if !ok {
			// A dangling BUCKET link observed mid-edit (§3: only possible
			// transiently); fail safe to DENY rather than escalate.
			return decided(policy.ResultDeny), apperr.New(apperr.CodeBucketNotExists, current)
		}

		candidate := b.Default()
		if best, ok := b.Best(key); ok {
			candidate = best.Result
		}

		if candidate.Type == policy.Bucket {
			if recursive && !visited[candidate.Metadata] {
				referrerDefaults = append(referrerDefaults, b.Default())
				visited[candidate.Metadata] = true
				current = candidate.Metadata
				continue
			}
			// Non-recursive simple-check, or a link back into an
			// already-visited bucket: BUCKET is treated as not-found and
			// this bucket's own default applies (§4.3 step 5).
			candidate = b.Default()
		}

		// NONE means "this bucket abstains; defer to the referrer's
		// default" (§4.3 step 6). A deferred default can itself be NONE,
		// so this keeps unwinding until a non-NONE value surfaces or the
		// outermost call is reached.
		for candidate.Type == policy.None && len(referrerDefaults) > 0 {
			last := len(referrerDefaults) - 1
			candidate = referrerDefaults[last]
			referrerDefaults = referrerDefaults[:last]
		}
		if candidate.Type == policy.None {
			return decided(policy.ResultNone), nil
		}

		if candidate.Type.IsPlugin() {
			return e.dispatchPlugin(key, candidate)
		}

		return decided(candidate), nil
	}
}

func (e *Evaluator) dispatchPlugin(key policy.Key, candidate policy.Result) (Outcome, error) {
	h, ok := e.plugins.Lookup(candidate.Type)
	if !ok {
		return decided(policy.ResultDeny), apperr.New(apperr.CodePluginNotFound, candidate.Type.String())
	}

	status, result, agentType, payload := h.Check(key.Client, key.User, key.Privilege, candidate)
	switch status {
	case plugin.AnswerReady:
		return decided(result), nil
	case plugin.AnswerNotReady:
		return Outcome{Suspend: &Suspend{AgentType: agentType, Payload: payload, PolicyType: candidate.Type}}, nil
	default: // plugin.Error
		return decided(policy.ResultDeny), apperr.New(apperr.CodePluginError, candidate.Type.String())
	}
}

// Resume finishes a check that previously suspended, using the agent's
// reply payload (§4.9: "agent replies with ACTION"). pendingType is the
// policy type recorded on the PendingRequest that suspended.
func (e *Evaluator) Resume(key policy.Key, pendingType policy.Type, agentPayload string) (Outcome, error) {
	h, ok := e.plugins.Lookup(pendingType)
	if !ok {
		return decided(policy.ResultDeny), apperr.New(apperr.CodePluginNotFound, pendingType.String())
	}
	status, result := h.Update(key.Client, key.User, key.Privilege, agentPayload)
	if status != plugin.AnswerReady {
		return decided(policy.ResultDeny), apperr.New(apperr.CodePluginError, pendingType.String())
	}
	return decided(result), nil
}

// AdminOutcome extends Outcome with the flags the admin-check variant
// exposes (§4.3).
type AdminOutcome struct {
	Outcome
	BucketValid bool
	DBCorrupted bool
}

// AdminCheck is the admin-check variant: it additionally reports whether
// start names an existing bucket, and short-circuits to DENY while
// dbCorrupted latches true (the caller owns that latch; see §7 propagation
// policy).
func (e *Evaluator) AdminCheck(start string, recursive bool, key policy.Key, dbCorrupted bool) (AdminOutcome, error) {
	bucketValid := e.store.HasBucket(start)
	if dbCorrupted {
		return AdminOutcome{Outcome: decided(policy.ResultDeny), BucketValid: bucketValid, DBCorrupted: true}, nil
	}
	out, err := e.Check(start, recursive, key)
	return AdminOutcome{Outcome: out, BucketValid: bucketValid}, err
}

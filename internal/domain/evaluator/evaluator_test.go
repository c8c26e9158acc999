package evaluator

import (
	"testing"

	"github.com/privd/privd/internal/domain/plugin"
	"github.com/privd/privd/internal/domain/policy"
)

func TestCheckDefaultDeny(t *testing.T) {
	// E1: fresh store, check(c,u,p) => DENY.
	store := policy.NewStore()
	e := New(store, plugin.NewRegistry())

	out, err := e.Check(policy.RootBucketID, true, policy.Key{"c", "u", "p"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !out.Decided || out.Result.Type != policy.Deny {
		t.Fatalf("expected decided DENY, got %+v", out)
	}
}

func TestCheckWildcardUser(t *testing.T) {
	// E2: root contains ((c,*,p), ALLOW).
	store := policy.NewStore()
	root, _ := store.Bucket(policy.RootBucketID)
	root.Insert(policy.Policy{Key: policy.Key{"c", policy.Wildcard, "p"}, Result: policy.ResultAllow})
	e := New(store, plugin.NewRegistry())

	out, _ := e.Check(policy.RootBucketID, true, policy.Key{"c", "u1", "p"})
	if out.Result.Type != policy.Allow {
		t.Fatalf("expected ALLOW for matching client/privilege, got %v", out.Result.Type)
	}
	out, _ = e.Check(policy.RootBucketID, true, policy.Key{"c2", "u1", "p"})
	if out.Result.Type != policy.Deny {
		t.Fatalf("expected DENY for a different client, got %v", out.Result.Type)
	}
}

func TestCheckSpecificity(t *testing.T) {
	// E3: root contains ((c,*,p),ALLOW) and ((c,u1,p),DENY).
	store := policy.NewStore()
	root, _ := store.Bucket(policy.RootBucketID)
	root.Insert(policy.Policy{Key: policy.Key{"c", policy.Wildcard, "p"}, Result: policy.ResultAllow})
	root.Insert(policy.Policy{Key: policy.Key{"c", "u1", "p"}, Result: policy.ResultDeny})
	e := New(store, plugin.NewRegistry())

	if out, _ := e.Check(policy.RootBucketID, true, policy.Key{"c", "u1", "p"}); out.Result.Type != policy.Deny {
		t.Fatalf("expected DENY for the literal match, got %v", out.Result.Type)
	}
	if out, _ := e.Check(policy.RootBucketID, true, policy.Key{"c", "u2", "p"}); out.Result.Type != policy.Allow {
		t.Fatalf("expected ALLOW for the wildcard fallback, got %v", out.Result.Type)
	}
}

func TestCheckBucketLinkWithNoneDefault(t *testing.T) {
	// E4: root contains ((c,u,p), BUCKET->B); B has default NONE and no
	// matching entry. check(c,u,p) recursive=true => DENY (root default).
	store := policy.NewStore()
	if err := store.CreateBucket("B", policy.ResultNone); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	root, _ := store.Bucket(policy.RootBucketID)
	root.Insert(policy.Policy{Key: policy.Key{"c", "u", "p"}, Result: policy.ResultBucket("B")})
	e := New(store, plugin.NewRegistry())

	out, err := e.Check(policy.RootBucketID, true, policy.Key{"c", "u", "p"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if out.Result.Type != policy.Deny {
		t.Fatalf("expected DENY deferred from root's default, got %v", out.Result.Type)
	}
}

func TestCheckNonRecursiveTreatsBucketAsNotFound(t *testing.T) {
	store := policy.NewStore()
	if err := store.CreateBucket("B", policy.ResultAllow); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	root, _ := store.Bucket(policy.RootBucketID)
	root.Insert(policy.Policy{Key: policy.Key{"c", "u", "p"}, Result: policy.ResultBucket("B")})
	e := New(store, plugin.NewRegistry())

	out, _ := e.Check(policy.RootBucketID, false, policy.Key{"c", "u", "p"})
	if out.Result.Type != policy.Deny {
		t.Fatalf("non-recursive check must fall back to root default, got %v", out.Result.Type)
	}
}

func TestCheckOutermostNoneSurfaces(t *testing.T) {
	store := policy.NewStore()
	if err := store.CreateBucket("B", policy.ResultNone); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	e := New(store, plugin.NewRegistry())

	out, err := e.Check("B", true, policy.Key{"c", "u", "p"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if out.Result.Type != policy.None {
		t.Fatalf("expected NONE to surface for an outermost call with no referrer, got %v", out.Result.Type)
	}
}

func TestCheckCyclicBucketsTerminate(t *testing.T) {
	store := policy.NewStore()
	if err := store.CreateBucket("A", policy.ResultDeny); err != nil {
		t.Fatalf("CreateBucket A: %v", err)
	}
	root, _ := store.Bucket(policy.RootBucketID)
	root.Insert(policy.Policy{Key: policy.Key{"c", "u", "p"}, Result: policy.ResultBucket("A")})
	bucketA, _ := store.Bucket("A")
	bucketA.Insert(policy.Policy{Key: policy.Key{"c", "u", "p"}, Result: policy.ResultBucket(policy.RootBucketID)})
	e := New(store, plugin.NewRegistry())

	out, err := e.Check(policy.RootBucketID, true, policy.Key{"c", "u", "p"})
	if err != nil {
		t.Fatalf("Check must terminate on a cycle, got error: %v", err)
	}
	if out.Result.Type != policy.Deny {
		t.Fatalf("expected DENY once the cycle is detected, got %v", out.Result.Type)
	}
}

// stubHandler implements plugin.Handler for E5.
type stubHandler struct {
	notReadyOnce bool
	agentType    string
	payload      string
}

func (s *stubHandler) Check(client, user, privilege string, in policy.Result) (plugin.Status, policy.Result, string, string) {
	if !s.notReadyOnce {
		s.notReadyOnce = true
		return plugin.AnswerNotReady, policy.Result{}, s.agentType, s.payload
	}
	return plugin.AnswerReady, policy.ResultAllow, "", ""
}

func (s *stubHandler) Update(client, user, privilege, agentPayload string) (plugin.Status, policy.Result) {
	if agentPayload == "grant" {
		return plugin.AnswerReady, policy.ResultAllow
	}
	return plugin.AnswerReady, policy.ResultDeny
}

func TestCheckPluginSuspendAndResume(t *testing.T) {
	// E5: register plugin type T; root contains ((c,u,p), T). Agent
	// suspends, then resumes with a grant.
	store := policy.NewStore()
	root, _ := store.Bucket(policy.RootBucketID)
	const T = policy.PluginTypeMin
	root.Insert(policy.Policy{Key: policy.Key{"c", "u", "p"}, Result: policy.Result{Type: T}})

	registry := plugin.NewRegistry()
	handler := &stubHandler{agentType: "ask-user", payload: "confirm?"}
	if err := registry.Register(T, "ask-user-plugin", handler); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e := New(store, registry)

	out, err := e.Check(policy.RootBucketID, true, policy.Key{"c", "u", "p"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if out.Decided || out.Suspend == nil {
		t.Fatalf("expected a suspend outcome, got %+v", out)
	}
	if out.Suspend.AgentType != "ask-user" || out.Suspend.PolicyType != T {
		t.Fatalf("unexpected suspend payload: %+v", out.Suspend)
	}

	resumed, err := e.Resume(policy.Key{"c", "u", "p"}, T, "grant")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !resumed.Decided || resumed.Result.Type != policy.Allow {
		t.Fatalf("expected ALLOW on resume, got %+v", resumed)
	}
}

func TestCheckUnknownPluginDegradesToDeny(t *testing.T) {
	store := policy.NewStore()
	root, _ := store.Bucket(policy.RootBucketID)
	root.Insert(policy.Policy{Key: policy.Key{"c", "u", "p"}, Result: policy.Result{Type: policy.PluginTypeMin}})
	e := New(store, plugin.NewRegistry())

	out, err := e.Check(policy.RootBucketID, true, policy.Key{"c", "u", "p"})
	if err == nil {
		t.Fatalf("expected an error for an unregistered plugin type")
	}
	if !out.Decided || out.Result.Type != policy.Deny {
		t.Fatalf("expected the evaluator to degrade to DENY, got %+v", out)
	}
}

func TestAdminCheckReportsBucketValidity(t *testing.T) {
	store := policy.NewStore()
	e := New(store, plugin.NewRegistry())

	out, err := e.AdminCheck("missing-bucket", true, policy.Key{"c", "u", "p"}, false)
	if err == nil {
		t.Fatalf("expected an error for a non-existent start bucket")
	}
	if out.BucketValid {
		t.Fatalf("expected BucketValid=false for a missing bucket")
	}
}

func TestAdminCheckLatchesOnDBCorrupted(t *testing.T) {
	store := policy.NewStore()
	root, _ := store.Bucket(policy.RootBucketID)
	root.Insert(policy.Policy{Key: policy.Key{"c", "u", "p"}, Result: policy.ResultAllow})
	e := New(store, plugin.NewRegistry())

	out, err := e.AdminCheck(policy.RootBucketID, true, policy.Key{"c", "u", "p"}, true)
	if err != nil {
		t.Fatalf("AdminCheck: %v", err)
	}
	if !out.DBCorrupted || out.Result.Type != policy.Deny {
		t.Fatalf("expected a latched DENY while db-corrupted, got %+v", out)
	}
}

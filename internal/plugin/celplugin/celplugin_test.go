package celplugin

import (
	"testing"

	"github.com/privd/privd/internal/domain/plugin"
	"github.com/privd/privd/internal/domain/policy"
)

func mustNew(t *testing.T) *Plugin {
	t.Helper()
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestCheckAllowsOnTrueExpression(t *testing.T) {
	p := mustNew(t)
	status, result, _, _ := p.Check("app", "alice", "net", policy.Result{Metadata: `user == "alice"`})
	if status != plugin.AnswerReady || result != policy.ResultAllow {
		t.Fatalf("got status=%v result=%v, want AnswerReady/Allow", status, result)
	}
}

func TestCheckDeniesOnFalseExpressionWithoutAgent(t *testing.T) {
	p := mustNew(t)
	status, result, _, _ := p.Check("app", "bob", "net", policy.Result{Metadata: `user == "alice"`})
	if status != plugin.AnswerReady || result != policy.ResultDeny {
		t.Fatalf("got status=%v result=%v, want AnswerReady/Deny", status, result)
	}
}

func TestCheckSuspendsOnFalseExpressionWithAgent(t *testing.T) {
	p := mustNew(t)
	status, _, agentType, payload := p.Check("app", "bob", "shutdown", policy.Result{
		Metadata: `agent:human-confirm|privilege == "never"`,
	})
	if status != plugin.AnswerNotReady {
		t.Fatalf("status = %v, want AnswerNotReady", status)
	}
	if agentType != "human-confirm" {
		t.Errorf("agentType = %q, want human-confirm", agentType)
	}
	if payload != `privilege == "never"` {
		t.Errorf("payload = %q", payload)
	}
}

func TestUpdateResolvesAgentAnswer(t *testing.T) {
	p := mustNew(t)
	if status, result := p.Update("", "", "", "allow"); status != plugin.AnswerReady || result != policy.ResultAllow {
		t.Errorf("allow: got %v/%v", status, result)
	}
	if status, result := p.Update("", "", "", "deny"); status != plugin.AnswerReady || result != policy.ResultDeny {
		t.Errorf("deny: got %v/%v", status, result)
	}
	if status, _ := p.Update("", "", "", "maybe"); status != plugin.Error {
		t.Errorf("garbage payload should error, got %v", status)
	}
}

func TestCheckErrorsOnInvalidExpression(t *testing.T) {
	p := mustNew(t)
	status, _, _, _ := p.Check("app", "alice", "net", policy.Result{Metadata: `user ==`})
	if status != plugin.Error {
		t.Fatalf("status = %v, want Error", status)
	}
}

func TestValidateMetadata(t *testing.T) {
	p := mustNew(t)
	if err := ValidateMetadata(p, `user == "alice"`); err != nil {
		t.Errorf("unexpected error for valid expression: %v", err)
	}
	if err := ValidateMetadata(p, `not valid cel (`); err == nil {
		t.Error("expected error for invalid expression")
	}
}

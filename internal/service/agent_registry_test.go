package service

import (
	"testing"

	"github.com/privd/privd/internal/apperr"
)

func TestAgentRegistryRegisterAndConnFor(t *testing.T) {
	reg := NewAgentRegistry()
	if err := reg.Register(ConnID(1), "ask-user"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	conn, ok := reg.ConnFor("ask-user")
	if !ok || conn != ConnID(1) {
		t.Fatalf("expected ask-user owned by conn 1, got %v %v", conn, ok)
	}
}

func TestAgentRegistryRejectsDoubleRegistration(t *testing.T) {
	reg := NewAgentRegistry()
	if err := reg.Register(ConnID(1), "ask-user"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := reg.Register(ConnID(2), "ask-user")
	if apperr.CodeOf(err) != apperr.CodeOperationNotAllowed {
		t.Fatalf("expected OperationNotAllowed, got %v", err)
	}
}

func TestAgentRegistryDropFreesType(t *testing.T) {
	reg := NewAgentRegistry()
	if err := reg.Register(ConnID(1), "ask-user"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	reg.Drop(ConnID(1))
	if _, ok := reg.ConnFor("ask-user"); ok {
		t.Fatalf("expected ask-user to be free after Drop")
	}
	if err := reg.Register(ConnID(2), "ask-user"); err != nil {
		t.Fatalf("expected re-registration to succeed: %v", err)
	}
}

func TestAgentRegistrySeqPoolAcquireRelease(t *testing.T) {
	reg := NewAgentRegistry()
	if err := reg.Register(ConnID(1), "ask-user"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	a, err := reg.AcquireSeq(ConnID(1))
	if err != nil {
		t.Fatalf("AcquireSeq: %v", err)
	}
	b, err := reg.AcquireSeq(ConnID(1))
	if err != nil {
		t.Fatalf("AcquireSeq: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct sequence numbers, got %d twice", a)
	}
	reg.ReleaseSeq(ConnID(1), a)
	c, err := reg.AcquireSeq(ConnID(1))
	if err != nil {
		t.Fatalf("AcquireSeq after release: %v", err)
	}
	if c != a {
		t.Fatalf("expected the freed sequence number to be reused first, got %d want %d", c, a)
	}
}

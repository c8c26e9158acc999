package service

import (
	"testing"

	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/policy"
)

func newTestPending(conn, clientSeq, agentConn, agentSeq uint16) *PendingRequest {
	return &PendingRequest{
		ClientConn: ConnID(conn),
		ClientSeq:  clientSeq,
		Key:        policy.Key{Client: "c", User: "u", Privilege: "p"},
		PluginType: policy.PluginTypeMin,
		AgentConn:  ConnID(agentConn),
		AgentSeq:   agentSeq,
	}
}

func TestPendingTableAddAndLookup(t *testing.T) {
	tbl := NewPendingTable(4)
	pr := newTestPending(1, 10, 2, 20)
	if err := tbl.Add(pr); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got, ok := tbl.LookupByClient(ConnID(1), 10); !ok || got != pr {
		t.Fatalf("expected to find pr by client identity")
	}
	if got, ok := tbl.LookupByAgent(ConnID(2), 20); !ok || got != pr {
		t.Fatalf("expected to find pr by agent identity")
	}
}

func TestPendingTableBoundsPerConnection(t *testing.T) {
	tbl := NewPendingTable(1)
	if err := tbl.Add(newTestPending(1, 10, 2, 20)); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	err := tbl.Add(newTestPending(1, 11, 2, 21))
	if apperr.CodeOf(err) != apperr.CodeMaxPendingRequests {
		t.Fatalf("expected MaxPendingRequests, got %v", err)
	}
}

func TestPendingTableForgetClientKeepsAgentSide(t *testing.T) {
	tbl := NewPendingTable(4)
	pr := newTestPending(1, 10, 2, 20)
	if err := tbl.Add(pr); err != nil {
		t.Fatalf("Add: %v", err)
	}
	tbl.ForgetClient(pr)

	if _, ok := tbl.LookupByClient(ConnID(1), 10); ok {
		t.Fatalf("expected client-side lookup to be gone after ForgetClient")
	}
	if _, ok := tbl.LookupByAgent(ConnID(2), 20); !ok {
		t.Fatalf("expected agent-side lookup to survive ForgetClient")
	}

	// The freed client slot admits a new request immediately.
	if err := tbl.Add(newTestPending(1, 11, 3, 30)); err != nil {
		t.Fatalf("slot should have been freed: %v", err)
	}
}

func TestPendingTableDropClient(t *testing.T) {
	tbl := NewPendingTable(4)
	a := newTestPending(1, 10, 2, 20)
	b := newTestPending(1, 11, 2, 21)
	other := newTestPending(9, 90, 2, 22)
	for _, p := range []*PendingRequest{a, b, other} {
		if err := tbl.Add(p); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	dropped := tbl.DropClient(ConnID(1))
	if len(dropped) != 2 {
		t.Fatalf("expected 2 dropped requests, got %d", len(dropped))
	}
	if _, ok := tbl.LookupByClient(ConnID(1), 10); ok {
		t.Fatalf("expected conn 1's requests to be gone")
	}
	if _, ok := tbl.LookupByClient(ConnID(9), 90); !ok {
		t.Fatalf("expected other connection's request to survive")
	}
}

func TestPendingTableDropAgent(t *testing.T) {
	tbl := NewPendingTable(4)
	a := newTestPending(1, 10, 5, 50)
	b := newTestPending(2, 20, 5, 51)
	other := newTestPending(3, 30, 6, 60)
	for _, p := range []*PendingRequest{a, b, other} {
		if err := tbl.Add(p); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	dropped := tbl.DropAgent(ConnID(5))
	if len(dropped) != 2 {
		t.Fatalf("expected 2 dropped requests, got %d", len(dropped))
	}
	if _, ok := tbl.LookupByAgent(ConnID(6), 60); !ok {
		t.Fatalf("expected the other agent's request to survive")
	}
}

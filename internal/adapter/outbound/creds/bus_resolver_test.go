package creds

import "testing"

func TestBusResolverClient(t *testing.T) {
	r := BusResolver{Lookup: func(name string) (BusPeerInfo, error) {
		if name != "org.example.peer" {
			t.Fatalf("unexpected lookup name %q", name)
		}
		return BusPeerInfo{PID: 42, SmackLabel: "System"}, nil
	}}

	pid, err := r.Client(Peer{BusUniqueName: "org.example.peer"}, ClientMethodPID)
	if err != nil || pid != "42" {
		t.Fatalf("expected pid 42, got %q err=%v", pid, err)
	}
	label, err := r.Client(Peer{BusUniqueName: "org.example.peer"}, ClientMethodSmackLabel)
	if err != nil || label != "System" {
		t.Fatalf("expected label System, got %q err=%v", label, err)
	}
}

func TestBusResolverUserUnsupported(t *testing.T) {
	r := BusResolver{Lookup: func(string) (BusPeerInfo, error) { return BusPeerInfo{}, nil }}
	if _, err := r.User(Peer{}, UserMethodUID); err == nil {
		t.Fatalf("expected bus uid resolution to be unsupported")
	}
}

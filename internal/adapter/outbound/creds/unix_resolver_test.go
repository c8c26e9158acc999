package creds

import (
	"os"
	"strconv"
	"testing"

	"golang.org/x/sys/unix"
)

func TestUnixResolverResolvesOwnProcess(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	var r UnixResolver
	client, err := r.Client(Peer{UnixFD: fds[0]}, ClientMethodPID)
	if err != nil {
		t.Fatalf("Client(pid): %v", err)
	}
	if want := strconv.Itoa(os.Getpid()); client != want {
		t.Fatalf("expected pid %q, got %q", want, client)
	}

	user, err := r.User(Peer{UnixFD: fds[0]}, UserMethodUID)
	if err != nil {
		t.Fatalf("User(uid): %v", err)
	}
	if want := strconv.Itoa(os.Getuid()); user != want {
		t.Fatalf("expected uid %q, got %q", want, user)
	}
}

func TestUnixResolverRejectsUnsupportedMethod(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	var r UnixResolver
	if _, err := r.User(Peer{UnixFD: fds[0]}, UserMethod(99)); err == nil {
		t.Fatalf("expected an error for an unsupported user method")
	}
}

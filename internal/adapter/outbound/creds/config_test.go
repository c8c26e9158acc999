package creds

import (
	"strings"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	src := "# comment\nclient_default = pid\nUSER_DEFAULT=gid # trailing\n"
	d, err := ParseDefaults(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseDefaults: %v", err)
	}
	if d.ClientDefault != ClientMethodPID {
		t.Fatalf("expected client_default pid, got %v", d.ClientDefault)
	}
	if d.UserDefault != UserMethodGID {
		t.Fatalf("expected user_default gid, got %v", d.UserDefault)
	}
}

func TestParseDefaultsRejectsDuplicateKey(t *testing.T) {
	src := "client_default=pid\nuser_default=uid\nclient_default=smack-label\n"
	if _, err := ParseDefaults(strings.NewReader(src)); err == nil {
		t.Fatalf("expected an error for a duplicate key")
	}
}

func TestParseDefaultsRejectsUnknownKey(t *testing.T) {
	src := "client_default=pid\nuser_default=uid\nbogus=1\n"
	if _, err := ParseDefaults(strings.NewReader(src)); err == nil {
		t.Fatalf("expected an error for an unknown key")
	}
}

func TestParseDefaultsRequiresBothKeys(t *testing.T) {
	if _, err := ParseDefaults(strings.NewReader("client_default=pid\n")); err == nil {
		t.Fatalf("expected an error when user_default is missing")
	}
}

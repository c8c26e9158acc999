package storage

import (
	"strings"
	"testing"

	"github.com/privd/privd/internal/domain/policy"
)

func TestParseBulkGroupsByBucket(t *testing.T) {
	input := strings.Join([]string{
		"# comment line",
		"privacy;app1;alice;internet;ALLOW;",
		"privacy;app2;*;camera;DENY;",
		"",
		"system;*;*;reboot;BUCKET;privacy",
	}, "\n")

	edits, err := ParseBulk(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseBulk: %v", err)
	}
	if len(edits) != 2 {
		t.Fatalf("got %d edits, want 2", len(edits))
	}
	if edits[0].BucketID != "privacy" || len(edits[0].Policies) != 2 {
		t.Fatalf("privacy edit = %+v", edits[0])
	}
	if edits[0].Policies[0].Result != policy.ResultAllow {
		t.Errorf("first policy result = %+v, want Allow", edits[0].Policies[0].Result)
	}
	if edits[1].BucketID != "system" || edits[1].Policies[0].Result != policy.ResultBucket("privacy") {
		t.Errorf("system edit = %+v", edits[1])
	}
}

func TestParseBulkRejectsMalformedLine(t *testing.T) {
	if _, err := ParseBulk(strings.NewReader("too;few;fields")); err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestParseBulkRejectsUnknownType(t *testing.T) {
	if _, err := ParseBulk(strings.NewReader("b;c;u;p;NOT_A_TYPE;")); err == nil {
		t.Fatal("expected error for unrecognised type")
	}
}

package audit

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/privd/privd/internal/domain/monitor"
	"github.com/privd/privd/internal/domain/policy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAppendWritesAndCaches(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(Config{Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer func() { _ = s.Close() }()

	entry := monitor.Entry{
		Key:      policy.Key{Client: "app", User: "alice", Privilege: "net"},
		Decision: policy.Deny,
		Sec:      1700000000,
	}
	if err := s.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recent := s.Recent(10)
	if len(recent) != 1 {
		t.Fatalf("Recent returned %d records, want 1", len(recent))
	}
	if recent[0].Client != "app" || recent[0].Decision != "DENY" {
		t.Errorf("record = %+v", recent[0])
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one audit file, got %v (err=%v)", entries, err)
	}
}

func TestNewFileSinkSeedsCacheFromExistingFile(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewFileSink(Config{Dir: dir, CacheSize: 5}, testLogger())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	entry := monitor.Entry{Key: policy.Key{Client: "app", User: "bob", Privilege: "cam"}, Decision: policy.Allow}
	if err := s1.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := NewFileSink(Config{Dir: dir, CacheSize: 5}, testLogger())
	if err != nil {
		t.Fatalf("NewFileSink (reopen): %v", err)
	}
	defer func() { _ = s2.Close() }()

	recent := s2.Recent(5)
	if len(recent) != 1 || recent[0].User != "bob" {
		t.Fatalf("expected seeded cache to contain bob's entry, got %+v", recent)
	}
}

func TestCleanupRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "audit-2000-01-01.log")
	if err := os.WriteFile(stale, []byte(`{"time":"2000-01-01T00:00:00Z"}`+"\n"), 0600); err != nil {
		t.Fatalf("seed stale file: %v", err)
	}

	s, err := NewFileSink(Config{Dir: dir, RetentionDays: 1}, testLogger())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("expected stale audit file to be removed, stat err=%v", err)
	}
}

func TestRotateSizeLockedStartsNewSuffix(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(Config{Dir: dir, MaxFileSizeMB: 0}, testLogger())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer func() { _ = s.Close() }()
	s.maxFileSize = 1 // force rotation on the very next append

	entry := monitor.Entry{Key: policy.Key{Client: "a", User: "b", Privilege: "c"}, Decision: policy.Deny}
	if err := s.Append(context.Background(), entry, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if s.currentSuffix == 0 {
		t.Error("expected size rotation to bump the suffix")
	}
}

package config

import "testing"

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	if cfg.Sockets.Client.Path == "" || cfg.Sockets.Admin.Path == "" || cfg.Sockets.Agent.Path == "" {
		t.Fatalf("expected default socket paths, got %+v", cfg.Sockets)
	}
	if cfg.Storage.Dir == "" {
		t.Fatalf("expected default storage dir")
	}
	if cfg.Cache.Capacity != 256 {
		t.Errorf("Cache.Capacity = %d, want 256", cfg.Cache.Capacity)
	}
	if cfg.Monitor.RingCapacity != 4096 {
		t.Errorf("Monitor.RingCapacity = %d, want 4096", cfg.Monitor.RingCapacity)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestSetDefaultsDevMode(t *testing.T) {
	cfg := Config{DevMode: true}
	cfg.SetDefaults()

	if cfg.Storage.Dir != "./db" {
		t.Errorf("Storage.Dir = %q, want ./db", cfg.Storage.Dir)
	}
	if cfg.Sockets.Client.Path != "./run/client" {
		t.Errorf("Sockets.Client.Path = %q, want ./run/client", cfg.Sockets.Client.Path)
	}
}

func TestSetDefaultsLeavesAuditDisabled(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.Audit.Enabled {
		t.Fatal("expected audit to default to disabled")
	}
	if cfg.Audit.Dir != "" {
		t.Errorf("Audit.Dir = %q, want empty when disabled", cfg.Audit.Dir)
	}
}

func TestSetDefaultsFillsAuditWhenEnabled(t *testing.T) {
	cfg := Config{Audit: AuditConfig{Enabled: true}}
	cfg.SetDefaults()
	if cfg.Audit.Dir == "" || cfg.Audit.RetentionDays != 7 || cfg.Audit.MaxFileSizeMB != 100 || cfg.Audit.FlushInterval != "1s" {
		t.Errorf("Audit defaults = %+v", cfg.Audit)
	}
}

func TestValidateRequiresSockets(t *testing.T) {
	cfg := Config{
		Storage: StorageConfig{Dir: "/tmp/db"},
		Cache:   CacheConfig{Capacity: 1},
		Monitor: MonitorConfig{RingCapacity: 1},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing socket paths")
	}
}

func TestValidateAccepts(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsBadCredsMethod(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	cfg.Creds.ClientDefault = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bad creds.client_default")
	}
}

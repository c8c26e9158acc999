// Package config provides the privd daemon's configuration schema: socket
// paths/permissions, the policy database directory, cache and monitor
// ring sizing, and the credential-resolution defaults (§6, §4.12).
package config

// SocketConfig names one listening socket's filesystem path. Permissions
// are fixed by §6 and are not configurable: client=0666, admin=0600,
// agent=0666.
type SocketConfig struct {
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

// SocketsConfig groups the three listening socket paths (§6: "Three
// listen paths under a configurable runtime directory").
type SocketsConfig struct {
	Client SocketConfig `yaml:"client" mapstructure:"client"`
	Admin  SocketConfig `yaml:"admin" mapstructure:"admin"`
	Agent  SocketConfig `yaml:"agent" mapstructure:"agent"`
}

// StorageConfig configures the on-disk persistence layer (§4.6).
type StorageConfig struct {
	// Dir is the database directory. Defaults to /var/lib/privd/db per
	// the …STATE_PATH environment variable convention of §6.
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required"`
}

// CacheConfig configures the per-connection decision cache (§4.10).
type CacheConfig struct {
	// Capacity bounds the number of (session, key) entries retained per
	// client connection before LRU eviction.
	Capacity int `yaml:"capacity" mapstructure:"capacity" validate:"min=1"`
}

// MonitorConfig configures the audit ring (§4.11).
type MonitorConfig struct {
	// RingCapacity bounds how many MonitorEntry records the in-memory
	// ring retains before overwriting the oldest.
	RingCapacity int `yaml:"ring_capacity" mapstructure:"ring_capacity" validate:"min=1"`
}

// CredsConfig mirrors the creds.conf file of §4.12/§6: the default
// credential-derivation methods used when a peer connects without an
// explicit per-call override.
type CredsConfig struct {
	// ClientDefault selects how the client identity half of (client,
	// user) is derived: "smack" or "pid".
	ClientDefault string `yaml:"client_default" mapstructure:"client_default" validate:"omitempty,oneof=smack pid"`
	// UserDefault selects how the user identity half is derived: "uid"
	// or "gid".
	UserDefault string `yaml:"user_default" mapstructure:"user_default" validate:"omitempty,oneof=uid gid"`
}

// MetricsConfig configures the loopback-only Prometheus debug listener
// (ambient stack addition; not part of §6's client-facing sockets).
type MetricsConfig struct {
	// Enabled turns the debug listener on. Default: false.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Addr is the loopback address the metrics HTTP server binds, e.g.
	// "127.0.0.1:9090".
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required_if=Enabled true"`
}

// AuditConfig configures the opt-in durable tail of the monitor ring
// (§4.11 supplement): the ring remains the source of truth for
// monitor_get_entries, this is purely a best-effort JSON-lines copy for
// operators who want decisions to survive a restart.
type AuditConfig struct {
	// Enabled turns the file sink on. Default: false.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Dir is the directory audit-YYYY-MM-DD.log files are written to.
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required_if=Enabled true"`
	// RetentionDays is how long rotated files are kept. Default: 7.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"min=0"`
	// MaxFileSizeMB rotates onto a new suffixed file past this size. Default: 100.
	MaxFileSizeMB int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"min=0"`
	// FlushInterval controls how often the sink drains the monitor ring.
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval"`
}

// LogConfig configures the daemon's structured logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	// JSON selects the JSON handler over the text handler; the teacher's
	// DevMode flag picks text in development, JSON in production.
	JSON bool `yaml:"json" mapstructure:"json"`
}

// Config is the top-level daemon configuration loaded by LoadConfig.
type Config struct {
	Sockets SocketsConfig `yaml:"sockets" mapstructure:"sockets" validate:"required"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage" validate:"required"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Monitor MonitorConfig `yaml:"monitor" mapstructure:"monitor"`
	Creds   CredsConfig   `yaml:"creds" mapstructure:"creds"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Audit   AuditConfig   `yaml:"audit" mapstructure:"audit"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`

	// DevMode relaxes socket/runtime-dir defaults to paths under the
	// current directory instead of /var/lib and /run, matching the
	// teacher's DevMode convenience flag.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// RuntimeFDEnvVar names the environment variable a supervising launcher
// uses to pass preopened listener fds (§4.8, §6): fds appear starting at
// a well-known number, one per socket, in client/admin/agent order.
const RuntimeFDEnvVar = "PRIVD_LAUNCHER_FD_BASE"

// SetDefaults fills unset fields with privd's stock configuration,
// mirroring the teacher's OSSConfig.SetDefaults.
func (c *Config) SetDefaults() {
	runtimeDir := "/run/privd"
	stateDir := "/var/lib/privd/db"
	if c.DevMode {
		runtimeDir = "./run"
		stateDir = "./db"
	}
	if c.Sockets.Client.Path == "" {
		c.Sockets.Client.Path = runtimeDir + "/client"
	}
	if c.Sockets.Admin.Path == "" {
		c.Sockets.Admin.Path = runtimeDir + "/admin"
	}
	if c.Sockets.Agent.Path == "" {
		c.Sockets.Agent.Path = runtimeDir + "/agent"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = stateDir
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = 256
	}
	if c.Monitor.RingCapacity == 0 {
		c.Monitor.RingCapacity = 4096
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9090"
	}
	if c.Audit.Enabled {
		if c.Audit.Dir == "" {
			c.Audit.Dir = stateDir + "/audit"
		}
		if c.Audit.RetentionDays == 0 {
			c.Audit.RetentionDays = 7
		}
		if c.Audit.MaxFileSizeMB == 0 {
			c.Audit.MaxFileSizeMB = 100
		}
		if c.Audit.FlushInterval == "" {
			c.Audit.FlushInterval = "1s"
		}
	}
}

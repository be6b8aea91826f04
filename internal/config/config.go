package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MailConfig holds SMTP transport settings.
type MailConfig struct {
	// Server is the SMTP hostname (e.g. smtp.gmail.com)
	Server string `json:"server"`

	// Port is the SMTP port (587 for STARTTLS, 465 for implicit TLS)
	Port int `json:"port"`

	// UseTLS upgrades the connection with STARTTLS after connecting
	UseTLS bool `json:"use_tls"`

	// UseSSL dials with implicit TLS instead of plaintext. Takes
	// precedence over UseTLS.
	UseSSL bool `json:"use_ssl"`

	// Username and Password authenticate against the relay (SASL PLAIN)
	Username string `json:"username"`
	Password string `json:"password"`

	// From is the envelope sender; defaults to Username
	From string `json:"from,omitempty"`
}

// Sender returns the effective From address.
func (m MailConfig) Sender() string {
	if m.From != "" {
		return m.From
	}
	return m.Username
}

// Config holds application configuration.
type Config struct {
	// Mail configures the SMTP transport used by the delivery sweep
	Mail MailConfig `json:"mail"`

	// SweepIntervalSeconds is the delivery sweep period. Due capsules are
	// processed within one period of becoming due. Default 60.
	SweepIntervalSeconds int `json:"sweep_interval_seconds,omitempty"`

	// MaxAttachmentBytes caps uploaded attachment size. Default 16 MiB.
	MaxAttachmentBytes int64 `json:"max_attachment_bytes,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is
	// locked" errors). 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Mail: MailConfig{
			Port:   587,
			UseTLS: true,
		},
		SweepIntervalSeconds: 60,
		MaxAttachmentBytes:   16 * 1024 * 1024,
	}
}

// Load loads configuration from baseDir/config.json and applies MAIL_*
// environment overrides. Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of
// ~/.timecapsule.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// loadFile loads configuration from a specific file path.
func loadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Merge cannot tell an explicit "use_tls": false from an absent key,
	// and UseTLS defaults to true. Re-decode the TLS flags as pointers and
	// apply the ones the file actually set.
	var flags struct {
		Mail struct {
			UseTLS *bool `json:"use_tls"`
			UseSSL *bool `json:"use_ssl"`
		} `json:"mail"`
	}
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, err
	}

	merged := Merge(DefaultConfig(), cfg)
	if flags.Mail.UseTLS != nil {
		merged.Mail.UseTLS = *flags.Mail.UseTLS
	}
	if flags.Mail.UseSSL != nil {
		merged.Mail.UseSSL = *flags.Mail.UseSSL
	}
	return merged, nil
}

// Merge combines base and overlay configs. Overlay values take precedence
// for non-zero scalars; arrays are merged and deduplicated. Booleans are
// OR-combined, so callers that need an explicit false must apply it after
// merging.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Mail = overlay.Mail
	if result.Mail.Server == "" {
		result.Mail.Server = base.Mail.Server
	}
	if result.Mail.Port == 0 {
		result.Mail.Port = base.Mail.Port
	}
	if result.Mail.Username == "" {
		result.Mail.Username = base.Mail.Username
	}
	if result.Mail.Password == "" {
		result.Mail.Password = base.Mail.Password
	}
	if result.Mail.From == "" {
		result.Mail.From = base.Mail.From
	}
	result.Mail.UseTLS = base.Mail.UseTLS || overlay.Mail.UseTLS
	result.Mail.UseSSL = base.Mail.UseSSL || overlay.Mail.UseSSL

	result.SweepIntervalSeconds = overlay.SweepIntervalSeconds
	if result.SweepIntervalSeconds == 0 {
		result.SweepIntervalSeconds = base.SweepIntervalSeconds
	}

	result.MaxAttachmentBytes = overlay.MaxAttachmentBytes
	if result.MaxAttachmentBytes == 0 {
		result.MaxAttachmentBytes = base.MaxAttachmentBytes
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// applyEnv overrides mail settings from MAIL_* environment variables so
// deployments can keep credentials out of config.json.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MAIL_SERVER"); v != "" {
		cfg.Mail.Server = v
	}
	if v := os.Getenv("MAIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Mail.Port = port
		}
	}
	if v := os.Getenv("MAIL_USE_TLS"); v != "" {
		cfg.Mail.UseTLS = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("MAIL_USE_SSL"); v != "" {
		cfg.Mail.UseSSL = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("MAIL_USERNAME"); v != "" {
		cfg.Mail.Username = v
	}
	if v := os.Getenv("MAIL_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
	if v := os.Getenv("MAIL_DEFAULT_SENDER"); v != "" {
		cfg.Mail.From = v
	}
}

// mergeStringSlice combines two slices, trims whitespace, and removes
// duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// Package config provides production-grade configuration management for the
// reverse proxy. It supports YAML-based configuration loading with strict
// validation, since a misconfigured rate limit or an empty upstream list
// must fail startup rather than silently serve traffic insecurely.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable parameter read from the proxy's YAML
// configuration file. The struct is loaded once at startup and then shared
// across goroutines as a read-only value; reload builds a fresh Config
// rather than mutating this one in place.
type Config struct {
	// ListenPort is the TCP port the TLS listener binds to on 0.0.0.0.
	ListenPort uint16 `yaml:"listen_port"`

	// UpstreamIPs is the ordered, non-empty list of "host:port" backend
	// origins. The host portion of the first entry is used both as the
	// upstream TLS SNI and as the rewritten Host header.
	UpstreamIPs []string `yaml:"upstream_ips"`

	// TLSCertPath and TLSKeyPath point to PEM files for the client-facing
	// listener.
	TLSCertPath string `yaml:"tls_cert_path"`
	TLSKeyPath  string `yaml:"tls_key_path"`

	// RateLimitPerSecond is the per-client ceiling of accepted requests in
	// any rolling 1 second window. Must be positive.
	RateLimitPerSecond uint32 `yaml:"rate_limit_per_second"`

	// JWTSecret is the symmetric HMAC-SHA-256 key used to validate bearer
	// tokens, trimmed of surrounding whitespace. Must be non-empty.
	JWTSecret string `yaml:"jwt_secret"`
}

// LoadConfig reads a YAML file at filename and deserialises it into a
// Config. It returns an error if the file cannot be opened or the YAML is
// malformed. It does not validate field values; call Validate for that.
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename) // #nosec G304 -- filename is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", filename, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // catch typos in config files early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", filename, err)
	}
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	return &cfg, nil
}

// Validate checks the invariants a Config must satisfy before it may be
// used to build a Snapshot: a non-empty upstream list with no blank
// entries, a positive rate limit, a non-empty secret, a non-zero listen
// port, and both TLS file paths. The zero Config fails every check, so a
// caller that forgets to load a file cannot accidentally serve traffic.
func (c *Config) Validate() error {
	if len(c.UpstreamIPs) == 0 {
		return fmt.Errorf("config: upstream_ips must not be empty")
	}
	for _, u := range c.UpstreamIPs {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("config: upstream_ips must not contain empty entries")
		}
	}
	if c.RateLimitPerSecond == 0 {
		return fmt.Errorf("config: rate_limit_per_second must be > 0")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: jwt_secret must not be empty")
	}
	if c.ListenPort == 0 {
		return fmt.Errorf("config: listen_port must not be 0")
	}
	if c.TLSCertPath == "" || c.TLSKeyPath == "" {
		return fmt.Errorf("config: tls_cert_path and tls_key_path are required")
	}
	return nil
}

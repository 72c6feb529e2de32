// Package config loads the boot-time Config spec.md §6 enumerates: where RS
// and L keep their on-disk state, the default data-proxy endpoint, the OIDC
// issuer table, the event-bus reply secret, and the HE/EB tunables. Grounded
// on the teacher's gopkg.in/yaml.v3 usage (cmd/warren/apply.go) — the teacher
// itself has no config-file loader, so this package's shape instead follows
// the plain-struct-plus-yaml.Unmarshal idiom the rest of the pack uses for
// file-backed config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/oklog/ulid/v2"

	"github.com/aruna-project/aruna-server/pkg/oidc"
)

// IssuerType mirrors oidc.PrincipalType in the config file's vocabulary
// ("user" or "service_account") rather than exposing the oidc package's
// integer enum directly in YAML.
type IssuerType string

const (
	IssuerTypeUser           IssuerType = "user"
	IssuerTypeServiceAccount IssuerType = "service_account"
)

// Issuer is one entry of spec.md §6's `issuers` list. Exactly one of
// JWKSURL or StaticKeys is expected to be set.
type Issuer struct {
	Name          string     `yaml:"name"`
	JWKSURL       string     `yaml:"jwks_url,omitempty"`
	StaticKeys    string     `yaml:"static_keys,omitempty"` // path to a JWK set file
	Audiences     []string   `yaml:"audiences"`
	Type          IssuerType `yaml:"type"`
	CacheDuration time.Duration `yaml:"cache_duration,omitempty"`
}

// Config is spec.md §6's enumerated configuration.
type Config struct {
	DataDir          string        `yaml:"data_dir"`
	LogDir           string        `yaml:"log_dir"`
	DefaultEndpoint  string        `yaml:"default_endpoint"` // ULID, parsed by Validate
	Issuers          []Issuer      `yaml:"issuers"`
	ReplySecret      string        `yaml:"reply_secret"`
	HookWorkerCount  uint16        `yaml:"hook_worker_count"`
	HookTimeout      time.Duration `yaml:"hook_timeout_default"`
	StreamBufferMax  uint32        `yaml:"stream_buffer_max"`

	// BindAddr and NodeID are not part of spec.md §6's enumerated config —
	// they are TC's raft wiring parameters, supplied here because
	// cmd/aruna-server has nowhere else to source them from.
	NodeID   string `yaml:"node_id"`
	BindAddr string `yaml:"bind_addr"`
}

// defaults matches spec.md §6's stated defaults exactly.
func defaults() Config {
	return Config{
		HookWorkerCount: 8,
		HookTimeout:     30 * time.Second,
		StreamBufferMax: 65536,
	}
}

// Load reads a YAML file at path and overlays it onto the spec-mandated
// defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.HookWorkerCount == 0 {
		cfg.HookWorkerCount = 8
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = 30 * time.Second
	}
	if cfg.StreamBufferMax == 0 {
		cfg.StreamBufferMax = 65536
	}
	return &cfg, nil
}

// Validate checks the fields cmd/aruna-server cannot safely default: a data
// directory, log directory, and (if set) a well-formed default endpoint ID.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.LogDir == "" {
		return fmt.Errorf("config: log_dir is required")
	}
	if c.DefaultEndpoint != "" {
		if _, err := ulid.Parse(c.DefaultEndpoint); err != nil {
			return fmt.Errorf("config: default_endpoint: %w", err)
		}
	}
	for i, iss := range c.Issuers {
		if iss.Name == "" {
			return fmt.Errorf("config: issuers[%d]: name is required", i)
		}
		if iss.JWKSURL == "" && iss.StaticKeys == "" {
			return fmt.Errorf("config: issuers[%d] %q: one of jwks_url or static_keys is required", i, iss.Name)
		}
		if iss.JWKSURL != "" && iss.StaticKeys != "" {
			return fmt.Errorf("config: issuers[%d] %q: jwks_url and static_keys are mutually exclusive", i, iss.Name)
		}
	}
	return nil
}

// OIDCIssuers resolves the config file's issuer table into the form
// oidc.New wants: static_keys entries are read and parsed into a jwk.Set,
// jwks_url entries are passed through for oidc's own JWKProvider to fetch.
func (c *Config) OIDCIssuers() ([]oidc.Issuer, error) {
	out := make([]oidc.Issuer, 0, len(c.Issuers))
	for _, iss := range c.Issuers {
		entry := oidc.Issuer{
			Name:          iss.Name,
			JWKSURL:       iss.JWKSURL,
			Audiences:     iss.Audiences,
			Type:          issuerType(iss.Type),
			CacheDuration: iss.CacheDuration,
		}
		if iss.StaticKeys != "" {
			data, err := os.ReadFile(iss.StaticKeys)
			if err != nil {
				return nil, fmt.Errorf("config: read static_keys for issuer %q: %w", iss.Name, err)
			}
			set, err := jwk.Parse(data)
			if err != nil {
				return nil, fmt.Errorf("config: parse static_keys for issuer %q: %w", iss.Name, err)
			}
			entry.StaticKeys = set
		}
		out = append(out, entry)
	}
	return out, nil
}

func issuerType(t IssuerType) oidc.PrincipalType {
	if t == IssuerTypeServiceAccount {
		return oidc.PrincipalServiceAccount
	}
	return oidc.PrincipalUser
}

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	KeyRemoteURL = "SUPABASE_URL"
	KeyRemoteKey = "SUPABASE_KEY"
)

var ErrNoCredentials = errors.New("remote store credentials not configured")

// Credentials for the remote table store.
type Credentials struct {
	URL string
	Key string
}

func (c Credentials) Validate() error {
	if c.URL == "" && c.Key == "" {
		return ErrNoCredentials
	}
	if c.URL == "" || c.Key == "" {
		return errors.Errorf("both %s and %s must be set", KeyRemoteURL, KeyRemoteKey)
	}
	if !strings.HasPrefix(c.URL, "https://") {
		return errors.Errorf("invalid %s format: %s", KeyRemoteURL, c.URL)
	}
	return nil
}

// CredentialSource resolves named secrets from one backing store.
type CredentialSource interface {
	Lookup(key string) string
	Name() string
}

type EnvSource struct{}

func (EnvSource) Lookup(key string) string { return Get(key) }
func (EnvSource) Name() string             { return "env" }

// SecretsDirSource reads each key from a file of the same name, the
// layout used by mounted container secrets.
type SecretsDirSource struct {
	Dir string
}

func (s SecretsDirSource) Lookup(key string) string {
	b, err := os.ReadFile(filepath.Join(s.Dir, key))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (s SecretsDirSource) Name() string { return "secrets:" + s.Dir }

// NewCredentialSource picks the secrets directory when one is configured
// and the environment otherwise. Called once at startup.
func NewCredentialSource(cfg *Config) CredentialSource {
	if cfg.SecretsDir != "" {
		return SecretsDirSource{Dir: cfg.SecretsDir}
	}
	return EnvSource{}
}

// ResolveCredentials reads and validates the remote store credentials.
// ErrNoCredentials means none are set and a local store should be used.
func ResolveCredentials(src CredentialSource) (Credentials, error) {
	c := Credentials{
		URL: strings.TrimRight(src.Lookup(KeyRemoteURL), "/"),
		Key: src.Lookup(KeyRemoteKey),
	}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// MaskURL shortens a URL for log output.
func MaskURL(u string) string {
	if u == "" {
		return "None"
	}
	if len(u) > 40 {
		return u[:30] + "..." + u[len(u)-10:]
	}
	return u
}

// Package node wires the commit-reveal core into a service: configuration,
// the authority set, the commitment store and the reveal pipeline.
package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tispark/tispark/commitreveal"
	"github.com/tispark/tispark/core/types"
	"github.com/tispark/tispark/log"
	"gopkg.in/yaml.v2"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig selects the commitment store. Path is only used by the
// badger backend; an empty path keeps the database in memory.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Config holds all configuration for a node.
type Config struct {
	// DataDir is the base for relative paths.
	DataDir string `yaml:"datadir"`

	Log LogConfig `yaml:"log"`

	// Authorities are the 0x-prefixed ed25519 keys of the remote
	// chain's finality committee, in committee order.
	Authorities []string `yaml:"authorities"`

	// EmergencyKey is the optional emergency finalizer key.
	EmergencyKey string `yaml:"emergency_key"`

	// SecretFile holds the long-term commitment secret as 0x-prefixed hex.
	SecretFile string `yaml:"secret_file"`

	Bounds types.Bounds `yaml:"bounds"`

	Store StoreConfig `yaml:"store"`

	// SignatureCacheSize is the capacity of the verified signature cache.
	// Zero disables the cache.
	SignatureCacheSize int `yaml:"signature_cache_size"`

	// BindStorageKey requires state proofs to address the commitment id
	// directly.
	BindStorageKey bool `yaml:"bind_storage_key"`
}

// DefaultConfig returns a Config with sensible defaults. It has no
// authorities and does not validate until some are added.
func DefaultConfig() Config {
	return Config{
		DataDir:            "tispark-data",
		Log:                LogConfig{Level: "info", Format: log.FormatText},
		SecretFile:         "secret.hex",
		Bounds:             types.DefaultBounds(),
		Store:              StoreConfig{Backend: BackendMemory},
		SignatureCacheSize: 1024,
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Log.Format {
	case log.FormatText, log.FormatJSON:
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if _, _, err := c.AuthorityKeys(); err != nil {
		return err
	}
	if err := c.Bounds.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Bounds.KeySize != commitreveal.KeySize {
		return fmt.Errorf("config: key size must be %d, got %d", commitreveal.KeySize, c.Bounds.KeySize)
	}
	if c.Bounds.IVLen != commitreveal.NonceSize {
		return fmt.Errorf("config: iv length must be %d, got %d", commitreveal.NonceSize, c.Bounds.IVLen)
	}
	switch c.Store.Backend {
	case BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.SignatureCacheSize < 0 {
		return fmt.Errorf("config: invalid signature cache size: %d", c.SignatureCacheSize)
	}
	return nil
}

// AuthorityKeys decodes the committee keys and the optional emergency key.
func (c *Config) AuthorityKeys() ([]types.PublicKey, *types.PublicKey, error) {
	if len(c.Authorities) == 0 {
		return nil, nil, errors.New("config: no authorities")
	}
	keys := make([]types.PublicKey, len(c.Authorities))
	seen := make(map[types.PublicKey]bool, len(c.Authorities))
	for i, s := range c.Authorities {
		pk, err := parseKey(s)
		if err != nil {
			return nil, nil, fmt.Errorf("config: authority %d: %w", i, err)
		}
		if seen[pk] {
			return nil, nil, fmt.Errorf("config: duplicate authority %s", pk)
		}
		seen[pk] = true
		keys[i] = pk
	}
	if c.EmergencyKey == "" {
		return keys, nil, nil
	}
	em, err := parseKey(c.EmergencyKey)
	if err != nil {
		return nil, nil, fmt.Errorf("config: emergency key: %w", err)
	}
	return keys, &em, nil
}

// ResolvePath resolves path relative to DataDir. Absolute paths are
// returned unchanged.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// LoadSecret reads the commitment secret from SecretFile.
func (c *Config) LoadSecret() ([]byte, error) {
	path := c.ResolvePath(c.SecretFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: secret: %w", err)
	}
	secret, err := hexutil.Decode(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("config: secret %s: %w", path, err)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("config: secret %s is empty", path)
	}
	return secret, nil
}

func parseKey(s string) (types.PublicKey, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return types.PublicKey{}, err
	}
	return types.PublicKeyFromBytes(b)
}

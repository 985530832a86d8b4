// Package secrets holds the LinkHub signing material in memory with atomic
// hot reload, so the signing secret can be rotated without a restart.
package secrets

import (
	"fmt"
	"os"
	"sync"
)

// Environment keys the default loader reads.
const (
	EnvSigningSecret = "LINKHUB_SIGNING_SECRET"
	EnvKeyPrefix     = "LINKHUB_API_KEY_PREFIX"
)

// Loader retrieves credentials from a source. Missing values are omitted
// from the result map.
type Loader func() (map[string]string, error)

// FromEnv returns a Loader reading the LinkHub credential env vars.
func FromEnv() Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, 2)
		for _, k := range []string{EnvSigningSecret, EnvKeyPrefix} {
			if v := os.Getenv(k); v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}

// Vault holds credential values and supports atomic reloading. A failed
// reload preserves the previous values.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	load   Loader
}

// NewVault creates a Vault, calling the loader once for initial values.
func NewVault(load Loader) (*Vault, error) {
	vals, err := load()
	if err != nil {
		return nil, fmt.Errorf("initial credential load: %w", err)
	}
	return &Vault{values: vals, load: load}, nil
}

// SigningSecret returns the current signing secret, "" if unset.
func (v *Vault) SigningSecret() string { return v.get(EnvSigningSecret) }

// KeyPrefix returns the current API key prefix, "" if unset.
func (v *Vault) KeyPrefix() string { return v.get(EnvKeyPrefix) }

func (v *Vault) get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Reload calls the loader and swaps in the new values atomically.
func (v *Vault) Reload() error {
	vals, err := v.load()
	if err != nil {
		return fmt.Errorf("reload credentials: %w", err)
	}
	v.mu.Lock()
	v.values = vals
	v.mu.Unlock()
	return nil
}

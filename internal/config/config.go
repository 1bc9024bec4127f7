// Package config persists the plugin settings shared by every user: the
// public server address, the management API credentials and the linking
// client id.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/wrale/alexa-media-skill/internal/lwa"
	"github.com/wrale/alexa-media-skill/internal/validation"
)

// SSL certificate types accepted for the skill endpoint
const (
	CertTrusted    = "Trusted"
	CertWildcard   = "Wildcard"
	CertSelfSigned = "SelfSigned"
)

// Plugin is the persisted configuration
type Plugin struct {
	ServerAddress string `toml:"server_address"`
	SslCertType   string `toml:"ssl_cert_type"`

	LwaClientID     string    `toml:"lwa_client_id"`
	LwaClientSecret string    `toml:"lwa_client_secret"`
	LwaRefreshToken string    `toml:"lwa_refresh_token,omitempty"`
	LwaAccessToken  string    `toml:"lwa_access_token,omitempty"`
	LwaExpiresAt    time.Time `toml:"lwa_expires_at"`

	VendorID string `toml:"vendor_id,omitempty"`
	SkillID  string `toml:"skill_id,omitempty"`

	AccountLinkingClientID string   `toml:"account_linking_client_id"`
	InteractionLocales     []string `toml:"interaction_locales"`
}

// Defaults returns the settings used when no file exists yet
func Defaults() Plugin {
	return Plugin{
		SslCertType:        CertWildcard,
		InteractionLocales: []string{"en-US", "de-DE"},
	}
}

// AddressChangeFunc runs after the server address changed
type AddressChangeFunc func(ctx context.Context, p Plugin) error

// Manager loads, holds and saves the plugin configuration
type Manager struct {
	path string

	mu       sync.RWMutex
	current  Plugin
	onChange []AddressChangeFunc
}

var _ lwa.AppCredentialStore = (*Manager)(nil)

// Load reads path, creating it with defaults when missing. A linking
// client id is generated on first load.
func Load(path string) (*Manager, error) {
	m := &Manager{path: path, current: Defaults()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &m.current); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if m.current.AccountLinkingClientID == "" {
		m.current.AccountLinkingClientID = uuid.NewString()
		if err := m.save(m.current); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Get returns a copy of the current settings
func (m *Manager) Get() Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.current
	p.InteractionLocales = append([]string(nil), m.current.InteractionLocales...)
	return p
}

// Update applies fn to a copy of the settings and persists the result
func (m *Manager) Update(fn func(*Plugin) error) (Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.current
	next.InteractionLocales = append([]string(nil), m.current.InteractionLocales...)
	if err := fn(&next); err != nil {
		return m.current, err
	}
	if err := m.save(next); err != nil {
		return m.current, err
	}
	m.current = next
	return next, nil
}

// save writes p atomically. Callers hold mu or own m exclusively.
func (m *Manager) save(p Plugin) error {
	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(p); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// OnServerAddressChange registers fn to run after UpdateServerAddress
func (m *Manager) OnServerAddressChange(fn AddressChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// UpdateServerAddress validates and stores a new public address, then runs
// the registered change hooks. certType defaults to the current type.
func (m *Manager) UpdateServerAddress(ctx context.Context, address, certType string) error {
	if err := validation.ValidateServerAddress(address); err != nil {
		return err
	}
	switch certType {
	case "", CertTrusted, CertWildcard, CertSelfSigned:
	default:
		return &validation.ValidationError{Field: "ssl cert type", Value: certType, Message: "unknown certificate type"}
	}

	p, err := m.Update(func(p *Plugin) error {
		p.ServerAddress = address
		if certType != "" {
			p.SslCertType = certType
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.RLock()
	hooks := append([]AddressChangeFunc(nil), m.onChange...)
	m.mu.RUnlock()

	var errs []error
	for _, fn := range hooks {
		if err := fn(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClientCredentials returns the identity service client pair
func (m *Manager) ClientCredentials() (clientID, clientSecret string) {
	p := m.Get()
	return p.LwaClientID, p.LwaClientSecret
}

// AppCredentials implements lwa.AppCredentialStore
func (m *Manager) AppCredentials() lwa.AppCredentials {
	p := m.Get()
	return lwa.AppCredentials{
		ClientID:     p.LwaClientID,
		ClientSecret: p.LwaClientSecret,
		RefreshToken: p.LwaRefreshToken,
		AccessToken:  p.LwaAccessToken,
		ExpiresAt:    p.LwaExpiresAt,
	}
}

// SaveAppToken implements lwa.AppCredentialStore. A response without a
// refresh token keeps the stored one.
func (m *Manager) SaveAppToken(tok lwa.Token) error {
	_, err := m.Update(func(p *Plugin) error {
		p.LwaAccessToken = tok.AccessToken
		p.LwaExpiresAt = tok.ExpiresAt
		if tok.RefreshToken != "" {
			p.LwaRefreshToken = tok.RefreshToken
		}
		return nil
	})
	return err
}

// ServerAddress returns the public base URL
func (m *Manager) ServerAddress() string {
	return m.Get().ServerAddress
}

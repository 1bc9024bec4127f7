package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wrale/alexa-media-skill/internal/lwa"
	"github.com/wrale/alexa-media-skill/internal/validation"
)

func TestLoad(t *testing.T) {
	t.Run("missing file gets defaults and a client id", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plugin.toml")

		m, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		p := m.Get()
		if p.AccountLinkingClientID == "" {
			t.Error("no linking client id generated")
		}
		if diff := cmp.Diff([]string{"en-US", "de-DE"}, p.InteractionLocales); diff != "" {
			t.Errorf("locales (-want +got):\n%s", diff)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("config file not created: %v", err)
		}

		again, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if again.Get().AccountLinkingClientID != p.AccountLinkingClientID {
			t.Error("linking client id changed between loads")
		}
	})

	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plugin.toml")
		content := `server_address = "https://jf.example.com"
ssl_cert_type = "Trusted"
lwa_client_id = "amzn1.application-oa2-client.x"
lwa_client_secret = "s3cret"
account_linking_client_id = "fixed"
interaction_locales = ["en-US"]
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		m, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		want := Plugin{
			ServerAddress:          "https://jf.example.com",
			SslCertType:            CertTrusted,
			LwaClientID:            "amzn1.application-oa2-client.x",
			LwaClientSecret:        "s3cret",
			AccountLinkingClientID: "fixed",
			InteractionLocales:     []string{"en-US"},
		}
		if diff := cmp.Diff(want, m.Get()); diff != "" {
			t.Errorf("config mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plugin.toml")
		os.WriteFile(path, []byte("server_address = "), 0o600)
		if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse") {
			t.Errorf("Load() error = %v, want parse error", err)
		}
	})
}

func TestSaveAppToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugin.toml")
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	m.Update(func(p *Plugin) error {
		p.LwaClientID = "cid"
		p.LwaClientSecret = "sec"
		p.LwaRefreshToken = "r1"
		return nil
	})

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := m.SaveAppToken(lwa.Token{AccessToken: "a1", ExpiresAt: expires}); err != nil {
		t.Fatalf("SaveAppToken() error = %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := lwa.AppCredentials{
		ClientID:     "cid",
		ClientSecret: "sec",
		RefreshToken: "r1",
		AccessToken:  "a1",
		ExpiresAt:    expires,
	}
	if diff := cmp.Diff(want, reloaded.AppCredentials()); diff != "" {
		t.Errorf("credentials after reload (-want +got):\n%s", diff)
	}

	id, secret := reloaded.ClientCredentials()
	if id != "cid" || secret != "sec" {
		t.Errorf("ClientCredentials() = %q, %q", id, secret)
	}
}

func TestUpdateServerAddress(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "plugin.toml"))
	if err != nil {
		t.Fatal(err)
	}

	var seen []string
	m.OnServerAddressChange(func(ctx context.Context, p Plugin) error {
		seen = append(seen, p.ServerAddress)
		return nil
	})

	if err := m.UpdateServerAddress(context.Background(), "https://jf.example.com", CertTrusted); err != nil {
		t.Fatalf("UpdateServerAddress() error = %v", err)
	}
	if got := m.Get(); got.ServerAddress != "https://jf.example.com" || got.SslCertType != CertTrusted {
		t.Errorf("config = %+v", got)
	}
	if diff := cmp.Diff([]string{"https://jf.example.com"}, seen); diff != "" {
		t.Errorf("hook calls (-want +got):\n%s", diff)
	}

	var ve *validation.ValidationError
	if err := m.UpdateServerAddress(context.Background(), "not a url", ""); !errors.As(err, &ve) {
		t.Errorf("invalid address error = %v, want ValidationError", err)
	}
	if err := m.UpdateServerAddress(context.Background(), "https://jf.example.com", "Bogus"); !errors.As(err, &ve) {
		t.Errorf("invalid cert type error = %v, want ValidationError", err)
	}
	if len(seen) != 1 {
		t.Errorf("hooks ran for rejected updates: %v", seen)
	}
}

func TestUpdateHookErrorsAreReturned(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "plugin.toml"))
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("sync failed")
	m.OnServerAddressChange(func(context.Context, Plugin) error { return boom })

	err = m.UpdateServerAddress(context.Background(), "https://jf.example.com", "")
	if !errors.Is(err, boom) {
		t.Errorf("UpdateServerAddress() error = %v, want %v", err, boom)
	}
	if m.ServerAddress() != "https://jf.example.com" {
		t.Error("address not stored when hook failed")
	}
}

package skillsync

import (
	"encoding/json"
	"testing"

	"github.com/wrale/alexa-media-skill/internal/smapi"
)

func TestVersionTag(t *testing.T) {
	tests := []struct {
		name string
		m    *smapi.Manifest
		want string
	}{
		{"nil", nil, "unknown"},
		{"no base locale", &smapi.Manifest{}, "unknown"},
		{"untagged", manifestNamed("Jellyfin"), "unknown"},
		{"tagged", manifestNamed("Jellyfin v1.4.2"), "1.4.2"},
		{"upper case", manifestNamed("Jellyfin V3"), "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VersionTag(tt.m); got != tt.want {
				t.Errorf("VersionTag() = %q, want %q", got, tt.want)
			}
		})
	}
}

func manifestNamed(name string) *smapi.Manifest {
	return &smapi.Manifest{PublishingInformation: smapi.PublishingInformation{
		Locales: map[string]*smapi.LocaleInfo{"en-US": {Name: name}},
	}}
}

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest("0.9.1", "https://jf.example.com/base/", "Trusted")
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	for locale, l := range m.PublishingInformation.Locales {
		if l.Name != "Jellyfin v0.9.1" {
			t.Errorf("%s name = %q", locale, l.Name)
		}
	}
	ep := m.Apis.Custom.Endpoint
	if ep.URI != "https://jf.example.com/base/alexaskill/api/alexa-request" || ep.SslCertificateType != "Trusted" {
		t.Errorf("endpoint = %+v", ep)
	}
	if len(m.Apis.Custom.Interfaces) == 0 || m.Apis.Custom.Interfaces[0].Type != "AUDIO_PLAYER" {
		t.Errorf("interfaces = %+v", m.Apis.Custom.Interfaces)
	}

	if err := SetAPIEndpoint(m, "", ""); err != nil {
		t.Fatal(err)
	}
	if m.Apis.Custom.Endpoint != nil {
		t.Error("empty server kept the endpoint")
	}
}

func TestInteractionModel(t *testing.T) {
	for _, locale := range []string{"en-US", "de-DE"} {
		raw, err := InteractionModel(locale, "kitchen music")
		if err != nil {
			t.Fatalf("InteractionModel(%s) error = %v", locale, err)
		}
		var doc struct {
			InteractionModel struct {
				LanguageModel struct {
					InvocationName string `json:"invocationName"`
					Intents        []struct {
						Name string `json:"name"`
					} `json:"intents"`
				} `json:"languageModel"`
			} `json:"interactionModel"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			t.Fatal(err)
		}
		lm := doc.InteractionModel.LanguageModel
		if lm.InvocationName != "kitchen music" {
			t.Errorf("%s invocation = %q", locale, lm.InvocationName)
		}
		found := false
		for _, in := range lm.Intents {
			if in.Name == "PlayAlbumIntent" {
				found = true
			}
		}
		if !found {
			t.Errorf("%s model lacks PlayAlbumIntent", locale)
		}
	}

	if _, err := InteractionModel("fr-FR", "x y"); err == nil {
		t.Error("unknown locale accepted")
	}
}

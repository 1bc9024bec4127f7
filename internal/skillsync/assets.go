package skillsync

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/wrale/alexa-media-skill/internal/smapi"
)

//go:embed assets/manifest.json assets/models/*.json
var assets embed.FS

// API paths relative to the public server address
const (
	RequestPath        = "/alexaskill/api/alexa-request"
	AccountLinkingPath = "/alexaskill/api/account-linking"
)

// baseLocale carries the version tag other locales are compared by
const baseLocale = "en-US"

// LoadManifest returns the embedded manifest tagged with version and
// pointing at server
func LoadManifest(version, server, certType string) (*smapi.Manifest, error) {
	data, err := assets.ReadFile("assets/manifest.json")
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m smapi.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	AddVersionTag(&m, version)
	if err := SetAPIEndpoint(&m, server, certType); err != nil {
		return nil, err
	}
	return &m, nil
}

// AddVersionTag appends " v<version>" to every locale name
func AddVersionTag(m *smapi.Manifest, version string) {
	for _, l := range m.PublishingInformation.Locales {
		if l != nil {
			l.Name += " v" + version
		}
	}
}

// VersionTag returns the version a manifest was tagged with, or "unknown"
func VersionTag(m *smapi.Manifest) string {
	if m == nil {
		return "unknown"
	}
	l := m.PublishingInformation.Locales[baseLocale]
	if l == nil {
		return "unknown"
	}
	fields := strings.Fields(l.Name)
	if len(fields) < 2 {
		return "unknown"
	}
	last := fields[len(fields)-1]
	if !strings.HasPrefix(strings.ToLower(last), "v") {
		return "unknown"
	}
	return last[1:]
}

// SetAPIEndpoint points the custom API at server. An empty server removes
// the endpoint.
func SetAPIEndpoint(m *smapi.Manifest, server, certType string) error {
	if server == "" {
		if m.Apis.Custom != nil {
			m.Apis.Custom.Endpoint = nil
		}
		return nil
	}

	uri, err := url.JoinPath(server, RequestPath)
	if err != nil {
		return fmt.Errorf("building endpoint: %w", err)
	}
	if m.Apis.Custom == nil {
		m.Apis.Custom = &smapi.CustomAPI{}
	}
	m.Apis.Custom.Endpoint = &smapi.Endpoint{URI: uri, SslCertificateType: certType}
	return nil
}

// LinkingURL returns the account linking page on server
func LinkingURL(server string) (string, error) {
	return url.JoinPath(server, AccountLinkingPath)
}

// InteractionModel returns the embedded model for locale with invocationName
// substituted
func InteractionModel(locale, invocationName string) (json.RawMessage, error) {
	data, err := assets.ReadFile("assets/models/" + locale + ".json")
	if err != nil {
		return nil, fmt.Errorf("no interaction model for %s: %w", locale, err)
	}

	var doc map[string]map[string]map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s model: %w", locale, err)
	}
	lm := doc["interactionModel"]["languageModel"]
	if lm == nil {
		return nil, fmt.Errorf("%s model has no language model", locale)
	}
	lm["invocationName"] = invocationName

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding %s model: %w", locale, err)
	}
	return out, nil
}

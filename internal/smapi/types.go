package smapi

import "encoding/json"

// Build states reported by the status endpoint
const (
	StatusInProgress = "IN_PROGRESS"
	StatusSucceeded  = "SUCCEEDED"
	StatusFailed     = "FAILED"
)

// AccountLinkingImplicit is the only linking grant the skill uses
const AccountLinkingImplicit = "IMPLICIT"

type Vendor struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

// Manifest is the skill manifest. Unknown sections are kept verbatim.
type Manifest struct {
	ManifestVersion       string                `json:"manifestVersion"`
	PublishingInformation PublishingInformation `json:"publishingInformation"`
	Apis                  Apis                  `json:"apis"`
	Permissions           []Permission          `json:"permissions,omitempty"`
	PrivacyAndCompliance  json.RawMessage       `json:"privacyAndCompliance,omitempty"`
}

type PublishingInformation struct {
	Locales               map[string]*LocaleInfo `json:"locales"`
	IsAvailableWorldwide  bool                   `json:"isAvailableWorldwide"`
	DistributionCountries []string               `json:"distributionCountries,omitempty"`
	Category              string                 `json:"category,omitempty"`
	TestingInstructions   string                 `json:"testingInstructions,omitempty"`
}

type LocaleInfo struct {
	Name           string   `json:"name"`
	Summary        string   `json:"summary,omitempty"`
	Description    string   `json:"description,omitempty"`
	ExamplePhrases []string `json:"examplePhrases,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	SmallIconURI   string   `json:"smallIconUri,omitempty"`
	LargeIconURI   string   `json:"largeIconUri,omitempty"`
}

type Apis struct {
	Custom *CustomAPI `json:"custom,omitempty"`
}

type CustomAPI struct {
	Endpoint   *Endpoint   `json:"endpoint,omitempty"`
	Interfaces []Interface `json:"interfaces,omitempty"`
}

type Endpoint struct {
	URI                string `json:"uri"`
	SslCertificateType string `json:"sslCertificateType,omitempty"`
}

type Interface struct {
	Type string `json:"type"`
}

type Permission struct {
	Name string `json:"name"`
}

// SkillStatus is the last build result per resource
type SkillStatus struct {
	Manifest         *ResourceStatus           `json:"manifest,omitempty"`
	InteractionModel map[string]ResourceStatus `json:"interactionModel,omitempty"`
}

type ResourceStatus struct {
	LastUpdateRequest UpdateRequest `json:"lastUpdateRequest"`
}

type UpdateRequest struct {
	Status string          `json:"status"`
	Errors []StatusMessage `json:"errors,omitempty"`
}

type StatusMessage struct {
	Message string `json:"message"`
}

// ManifestState returns the manifest build state, or "" if unreported
func (s *SkillStatus) ManifestState() string {
	if s == nil || s.Manifest == nil {
		return ""
	}
	return s.Manifest.LastUpdateRequest.Status
}

// AccountLinking is a skill's account linking configuration
type AccountLinking struct {
	Type             string   `json:"type"`
	AuthorizationURL string   `json:"authorizationUrl"`
	ClientID         string   `json:"clientId"`
	Domains          []string `json:"domains,omitempty"`
	Scopes           []string `json:"scopes,omitempty"`
}

// Package users stores the linked accounts of the skill
package users

import (
	"time"

	"github.com/wrale/alexa-media-skill/internal/lwa"
)

// SkillStatus tracks a user's private skill through its setup
type SkillStatus string

const (
	StatusLwaAuthPending     SkillStatus = "LwaAuthPending"
	StatusSkillCreating      SkillStatus = "SkillCreating"
	StatusAccountLinkPending SkillStatus = "AccountLinkPending"
	StatusReady              SkillStatus = "Ready"
	StatusFailed             SkillStatus = "Failed"
)

// SkillLinkage ties a user to a skill in their own developer account
type SkillLinkage struct {
	SkillID        string      `json:"skill_id,omitempty"`
	Status         SkillStatus `json:"status"`
	InvocationName string      `json:"invocation_name"`
	Error          string      `json:"error,omitempty"`
}

// User correlates a voice platform principal with a media server credential
type User struct {
	ID          string        `json:"id"`
	ServerToken string        `json:"server_token"`
	DeviceToken *lwa.Token    `json:"device_token,omitempty"`
	Skill       *SkillLinkage `json:"skill,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Clone returns a deep copy
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.DeviceToken != nil {
		tok := *u.DeviceToken
		c.DeviceToken = &tok
	}
	if u.Skill != nil {
		s := *u.Skill
		c.Skill = &s
	}
	return &c
}

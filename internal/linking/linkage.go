package linking

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/wrale/alexa-media-skill/internal/skillsync"
	"github.com/wrale/alexa-media-skill/internal/users"
	"github.com/wrale/alexa-media-skill/internal/validation"
)

// SkillManager creates, updates and deletes a user's remote skill
type SkillManager interface {
	Syncer
	RemoveSkill(ctx context.Context, userID string) error
}

// Sessions drops playback state
type Sessions interface {
	EndUser(userID string)
}

// Linkages manages which users get a private skill
type Linkages struct {
	users    users.Store
	devices  *DeviceLinking
	syncer   SkillManager
	sessions Sessions
	logger   *log.Logger
}

// NewLinkages creates the admin operations over user skill linkages
func NewLinkages(store users.Store, devices *DeviceLinking, syncer SkillManager, sessions Sessions, logger *log.Logger) *Linkages {
	return &Linkages{
		users:    store,
		devices:  devices,
		syncer:   syncer,
		sessions: sessions,
		logger:   logger.With("component", "linkages"),
	}
}

// Create gives userID a private skill with the invocation name, or the
// default one when empty. The user still has to authorize skill management
// before anything is created remotely.
func (l *Linkages) Create(ctx context.Context, userID, invocationName string) (*users.User, error) {
	if userID == "" {
		return nil, &validation.ValidationError{Field: "userId", Message: "required"}
	}
	name := validation.NormalizeInvocationName(invocationName)
	if name == "" {
		name = skillsync.DefaultInvocationName
	}
	if err := validation.ValidateInvocationName(name); err != nil {
		return nil, err
	}

	u, err := l.users.Upsert(ctx, userID, func(u *users.User) error {
		if u.Skill != nil {
			u.Skill.InvocationName = name
			return nil
		}
		u.Skill = &users.SkillLinkage{
			Status:         users.StatusLwaAuthPending,
			InvocationName: name,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving linkage: %w", err)
	}
	l.logger.Info("linkage created", "user", userID, "invocation", name)
	return u, nil
}

// Rename changes the invocation name and pushes it to the skill when one exists
func (l *Linkages) Rename(ctx context.Context, userID, invocationName string) (*users.User, error) {
	name := validation.NormalizeInvocationName(invocationName)
	if err := validation.ValidateInvocationName(name); err != nil {
		return nil, err
	}

	u, err := l.users.Update(ctx, userID, func(u *users.User) error {
		if u.Skill == nil {
			return ErrNoLinkage
		}
		u.Skill.InvocationName = name
		return nil
	})
	if err != nil {
		return nil, err
	}

	if u.Skill.SkillID != "" {
		if err := l.syncer.SyncUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("syncing skill: %w", err)
		}
		if u, err = l.users.Get(ctx, userID); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Remove stops any pending authorization, deletes the remote skill and
// forgets the user's management credentials. The account link itself is
// kept. A failed remote deletion is logged and the linkage still cleared.
func (l *Linkages) Remove(ctx context.Context, userID string) error {
	l.devices.Cancel(userID)

	if err := l.syncer.RemoveSkill(ctx, userID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return err
		}
		l.logger.Warn("remote skill not deleted", "user", userID, "err", err)
	}

	_, err := l.users.Update(ctx, userID, func(u *users.User) error {
		if u.Skill == nil {
			return ErrNoLinkage
		}
		u.Skill = nil
		u.DeviceToken = nil
		return nil
	})
	if err != nil {
		return err
	}
	l.logger.Info("linkage removed", "user", userID)
	return nil
}

// Authorize issues the device linking page for the user
func (l *Linkages) Authorize(ctx context.Context, userID string) (string, error) {
	return l.devices.IssueLink(ctx, userID)
}

// Purge cancels every pending authorization, ends all playback sessions
// and deletes all users
func (l *Linkages) Purge(ctx context.Context) error {
	all, err := l.users.List(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	for _, u := range all {
		l.devices.Cancel(u.ID)
		l.sessions.EndUser(u.ID)
	}
	if err := l.users.DeleteAll(ctx); err != nil {
		return fmt.Errorf("deleting users: %w", err)
	}
	l.logger.Warn("all users deleted", "count", len(all))
	return nil
}

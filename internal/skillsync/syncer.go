// Package skillsync creates and updates skills in the management API so
// they match the manifest, interaction models and account linking this
// server expects.
package skillsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/wrale/alexa-media-skill/internal/authretry"
	"github.com/wrale/alexa-media-skill/internal/config"
	"github.com/wrale/alexa-media-skill/internal/smapi"
	"github.com/wrale/alexa-media-skill/internal/users"
)

// DefaultInvocationName is used for the shared skill and new linkages
const DefaultInvocationName = "jellyfin player"

var (
	// ErrNoServerAddress indicates the public address is not configured
	ErrNoServerAddress = errors.New("server address not configured")

	// ErrNoVendor indicates the token can act for no developer account
	ErrNoVendor = errors.New("no vendor available")

	// ErrBuildFailed indicates the management API rejected the skill build
	ErrBuildFailed = errors.New("skill build failed")

	errBuilding = errors.New("build in progress")
)

// Management is the subset of the management API the syncer drives
type Management interface {
	Vendors(ctx context.Context, token string) ([]smapi.Vendor, error)
	CreateSkill(ctx context.Context, token, vendorID string, m *smapi.Manifest) (string, error)
	GetManifest(ctx context.Context, token, skillID string) (*smapi.Manifest, error)
	UpdateManifest(ctx context.Context, token, skillID string, m *smapi.Manifest) error
	DeleteSkill(ctx context.Context, token, skillID string) error
	Status(ctx context.Context, token, skillID string) (*smapi.SkillStatus, error)
	GetAccountLinking(ctx context.Context, token, skillID string) (*smapi.AccountLinking, error)
	UpdateAccountLinking(ctx context.Context, token, skillID string, al smapi.AccountLinking) error
	UpdateInteractionModel(ctx context.Context, token, skillID, locale string, model json.RawMessage) error
}

// Settings is the plugin configuration the syncer reads and records into
type Settings interface {
	Get() config.Plugin
	Update(fn func(*config.Plugin) error) (config.Plugin, error)
}

// Syncer keeps remote skills in line with local state
type Syncer struct {
	api      Management
	users    users.Store
	retrier  *authretry.Retrier
	app      authretry.AppTokens
	settings Settings
	logger   *log.Logger
	version  string

	newBackOff func() backoff.BackOff
}

// Option configures a Syncer
type Option func(*Syncer)

// WithVersion sets the version tag written into manifests
func WithVersion(v string) Option {
	return func(s *Syncer) {
		s.version = v
	}
}

// WithBackOff sets the build-status polling schedule
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(s *Syncer) {
		s.newBackOff = fn
	}
}

// New creates a Syncer
func New(api Management, store users.Store, retrier *authretry.Retrier, app authretry.AppTokens, settings Settings, logger *log.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		api:        api,
		users:      store,
		retrier:    retrier,
		app:        app,
		settings:   settings,
		logger:     logger,
		version:    "1.0.0",
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 5 * time.Minute
	return b
}

// caller runs fn with a bearer token, refreshing it once on unauthorized
type caller func(ctx context.Context, fn func(ctx context.Context, token string) error) error

func (s *Syncer) userCaller(userID string) caller {
	return func(ctx context.Context, fn func(context.Context, string) error) error {
		_, err := authretry.Call(ctx, s.retrier, userID, func(ctx context.Context, u *users.User) (struct{}, error) {
			if u.DeviceToken == nil {
				return struct{}{}, fmt.Errorf("user %s has no device token", userID)
			}
			return struct{}{}, fn(ctx, u.DeviceToken.AccessToken)
		})
		return err
	}
}

func (s *Syncer) appCaller() caller {
	return func(ctx context.Context, fn func(context.Context, string) error) error {
		_, err := authretry.CallApp(ctx, s.app, func(ctx context.Context, token string) (struct{}, error) {
			return struct{}{}, fn(ctx, token)
		})
		return err
	}
}

// target is one skill to reconcile, either a user's or the shared one
type target struct {
	name           string
	skillID        string
	vendorID       string
	invocationName string
	call           caller

	created   func(ctx context.Context, skillID string) error
	setStatus func(ctx context.Context, status users.SkillStatus, cause error)
}

// SyncUser reconciles the private skill of one user. Users still waiting
// for a device token are skipped.
func (s *Syncer) SyncUser(ctx context.Context, userID string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.Skill == nil || u.DeviceToken == nil {
		s.logger.Debug("skipping user without skill credentials", "user", userID)
		return nil
	}

	t := &target{
		name:           "user " + userID,
		skillID:        u.Skill.SkillID,
		invocationName: u.Skill.InvocationName,
		call:           s.userCaller(userID),
		created: func(ctx context.Context, skillID string) error {
			_, err := s.users.Update(ctx, userID, func(u *users.User) error {
				if u.Skill == nil {
					u.Skill = &users.SkillLinkage{InvocationName: DefaultInvocationName}
				}
				u.Skill.SkillID = skillID
				return nil
			})
			return err
		},
		setStatus: func(ctx context.Context, status users.SkillStatus, cause error) {
			_, err := s.users.Update(ctx, userID, func(u *users.User) error {
				if u.Skill == nil {
					u.Skill = &users.SkillLinkage{InvocationName: DefaultInvocationName}
				}
				u.Skill.Status = status
				u.Skill.Error = ""
				if cause != nil {
					u.Skill.Error = cause.Error()
				}
				return nil
			})
			if err != nil {
				s.logger.Error("recording skill status", "user", userID, "status", status, "err", err)
			}
		},
	}
	if t.invocationName == "" {
		t.invocationName = DefaultInvocationName
	}
	if err := s.sync(ctx, t); err != nil {
		return err
	}
	return s.settle(ctx, userID)
}

// settle moves a user whose skill is in place to the next waiting state:
// Ready once the account is linked, AccountLinkPending until then.
func (s *Syncer) settle(ctx context.Context, userID string) error {
	_, err := s.users.Update(ctx, userID, func(u *users.User) error {
		if u.Skill == nil || u.Skill.SkillID == "" {
			return nil
		}
		switch u.Skill.Status {
		case users.StatusFailed, users.StatusSkillCreating, users.StatusAccountLinkPending:
			u.Skill.Error = ""
			if u.ServerToken != "" {
				u.Skill.Status = users.StatusReady
			} else {
				u.Skill.Status = users.StatusAccountLinkPending
			}
		}
		return nil
	})
	return err
}

// RemoveSkill deletes the user's remote skill. A skill that is already gone
// or a user without management credentials is not an error.
func (s *Syncer) RemoveSkill(ctx context.Context, userID string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.Skill == nil || u.Skill.SkillID == "" || u.DeviceToken == nil {
		return nil
	}

	skillID := u.Skill.SkillID
	err = s.userCaller(userID)(ctx, func(ctx context.Context, token string) error {
		return s.api.DeleteSkill(ctx, token, skillID)
	})
	if err != nil && !errors.Is(err, smapi.ErrNotFound) {
		return fmt.Errorf("deleting skill %s: %w", skillID, err)
	}
	s.logger.Info("skill deleted", "user", userID, "skill", skillID)
	return nil
}

// SyncPlugin reconciles the shared skill owned by the plugin credentials.
// It does nothing when no management credentials are configured.
func (s *Syncer) SyncPlugin(ctx context.Context) error {
	p := s.settings.Get()
	if p.LwaClientID == "" || p.LwaClientSecret == "" || p.LwaRefreshToken == "" {
		s.logger.Debug("skipping shared skill, no management credentials")
		return nil
	}

	t := &target{
		name:           "shared skill",
		skillID:        p.SkillID,
		vendorID:       p.VendorID,
		invocationName: DefaultInvocationName,
		call:           s.appCaller(),
		created: func(ctx context.Context, skillID string) error {
			_, err := s.settings.Update(func(p *config.Plugin) error {
				p.SkillID = skillID
				return nil
			})
			return err
		},
		setStatus: func(ctx context.Context, status users.SkillStatus, cause error) {
			if cause != nil {
				s.logger.Error("shared skill sync", "status", status, "err", cause)
				return
			}
			s.logger.Info("shared skill sync", "status", status)
		},
	}
	return s.sync(ctx, t)
}

// SyncAll reconciles the shared skill and every user's skill. A failure
// for one skill does not stop the others.
func (s *Syncer) SyncAll(ctx context.Context) error {
	var errs []error
	if err := s.SyncPlugin(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shared skill: %w", err))
	}

	all, err := s.users.List(ctx)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("listing users: %w", err))...)
	}
	for _, u := range all {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := s.SyncUser(ctx, u.ID); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", u.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Syncer) sync(ctx context.Context, t *target) error {
	p := s.settings.Get()
	if p.ServerAddress == "" {
		s.logger.Warn("no server address set up, skills cannot be created or updated")
		return ErrNoServerAddress
	}

	manifest, err := LoadManifest(s.version, p.ServerAddress, p.SslCertType)
	if err != nil {
		return err
	}
	linkURL, err := LinkingURL(p.ServerAddress)
	if err != nil {
		return fmt.Errorf("building linking url: %w", err)
	}
	linking := smapi.AccountLinking{
		Type:             smapi.AccountLinkingImplicit,
		AuthorizationURL: linkURL,
		ClientID:         p.AccountLinkingClientID,
	}

	if t.skillID == "" {
		err = s.create(ctx, t, manifest, linking, p.InteractionLocales)
	} else {
		err = s.update(ctx, t, manifest, linking, p.InteractionLocales)
	}
	if err != nil {
		t.setStatus(ctx, users.StatusFailed, err)
	}
	return err
}

func (s *Syncer) create(ctx context.Context, t *target, manifest *smapi.Manifest, linking smapi.AccountLinking, locales []string) error {
	s.logger.Info("creating skill", "target", t.name)
	t.setStatus(ctx, users.StatusSkillCreating, nil)

	vendorID := t.vendorID
	var skillID string
	err := t.call(ctx, func(ctx context.Context, token string) error {
		if vendorID == "" {
			vendors, err := s.api.Vendors(ctx, token)
			if err != nil {
				return err
			}
			if len(vendors) == 0 {
				return ErrNoVendor
			}
			vendorID = vendors[0].ID
		}
		id, err := s.api.CreateSkill(ctx, token, vendorID, manifest)
		skillID = id
		return err
	})
	if err != nil {
		return fmt.Errorf("creating skill: %w", err)
	}
	if err := t.created(ctx, skillID); err != nil {
		return fmt.Errorf("recording skill id: %w", err)
	}
	t.skillID = skillID

	if err := s.waitForBuild(ctx, t); err != nil {
		return err
	}
	if err := s.pushModels(ctx, t, locales); err != nil {
		return err
	}
	if err := s.pushLinking(ctx, t, linking); err != nil {
		return err
	}

	t.setStatus(ctx, users.StatusAccountLinkPending, nil)
	s.logger.Info("skill created", "target", t.name, "skill", skillID)
	return nil
}

func (s *Syncer) update(ctx context.Context, t *target, manifest *smapi.Manifest, linking smapi.AccountLinking, locales []string) error {
	var (
		remote        *smapi.Manifest
		status        *smapi.SkillStatus
		remoteLinkage *smapi.AccountLinking
	)
	err := t.call(ctx, func(ctx context.Context, token string) error {
		var err error
		if remote, err = s.api.GetManifest(ctx, token, t.skillID); err != nil {
			return err
		}
		if status, err = s.api.Status(ctx, token, t.skillID); err != nil {
			return err
		}
		remoteLinkage, err = s.api.GetAccountLinking(ctx, token, t.skillID)
		if errors.Is(err, smapi.ErrNotFound) {
			remoteLinkage, err = nil, nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("loading remote skill: %w", err)
	}

	remoteVersion := VersionTag(remote)
	s.logger.Info("existing skill found", "target", t.name, "skill", t.skillID, "remote_version", remoteVersion, "local_version", s.version)

	if !strings.EqualFold(remoteVersion, s.version) || status.ManifestState() == smapi.StatusFailed {
		s.logger.Info("skill outdated or last build failed, rebuilding", "target", t.name)
		err := t.call(ctx, func(ctx context.Context, token string) error {
			return s.api.UpdateManifest(ctx, token, t.skillID, manifest)
		})
		if err != nil {
			return fmt.Errorf("updating manifest: %w", err)
		}
		if err := s.waitForBuild(ctx, t); err != nil {
			return err
		}
		if err := s.pushModels(ctx, t, locales); err != nil {
			return err
		}
	}

	if remoteLinkage == nil || remoteLinkage.AuthorizationURL != linking.AuthorizationURL || remoteLinkage.ClientID != linking.ClientID {
		s.logger.Info("account linking outdated, updating", "target", t.name)
		if err := s.pushLinking(ctx, t, linking); err != nil {
			return err
		}
	}
	return nil
}

// waitForBuild polls the build status until it leaves IN_PROGRESS
func (s *Syncer) waitForBuild(ctx context.Context, t *target) error {
	var last *smapi.SkillStatus
	poll := func() error {
		err := t.call(ctx, func(ctx context.Context, token string) error {
			st, err := s.api.Status(ctx, token, t.skillID)
			last = st
			return err
		})
		if err != nil {
			return backoff.Permanent(err)
		}
		if last.ManifestState() == smapi.StatusInProgress {
			return errBuilding
		}
		return nil
	}

	err := backoff.RetryNotify(poll, backoff.WithContext(s.newBackOff(), ctx), func(err error, d time.Duration) {
		s.logger.Debug("waiting for skill build", "target", t.name, "next", d)
	})
	if err != nil {
		if errors.Is(err, errBuilding) {
			return fmt.Errorf("skill build did not finish: %w", err)
		}
		return fmt.Errorf("checking build status: %w", err)
	}

	if last.ManifestState() == smapi.StatusFailed {
		var msgs []string
		for _, e := range last.Manifest.LastUpdateRequest.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("%w: %s", ErrBuildFailed, strings.Join(msgs, "; "))
	}
	return nil
}

func (s *Syncer) pushModels(ctx context.Context, t *target, locales []string) error {
	for _, locale := range locales {
		model, err := InteractionModel(locale, t.invocationName)
		if err != nil {
			return err
		}
		err = t.call(ctx, func(ctx context.Context, token string) error {
			return s.api.UpdateInteractionModel(ctx, token, t.skillID, locale, model)
		})
		if err != nil {
			return fmt.Errorf("updating %s interaction model: %w", locale, err)
		}
	}
	return nil
}

func (s *Syncer) pushLinking(ctx context.Context, t *target, linking smapi.AccountLinking) error {
	err := t.call(ctx, func(ctx context.Context, token string) error {
		return s.api.UpdateAccountLinking(ctx, token, t.skillID, linking)
	})
	if err != nil {
		return fmt.Errorf("updating account linking: %w", err)
	}
	return nil
}

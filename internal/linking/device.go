package linking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/wrale/alexa-media-skill/internal/lwa"
	"github.com/wrale/alexa-media-skill/internal/templates"
	"github.com/wrale/alexa-media-skill/internal/tokenstore"
	"github.com/wrale/alexa-media-skill/internal/users"
	"github.com/wrale/alexa-media-skill/internal/worker"
)

// DeviceLinkPath serves the page showing the device grant user code
const DeviceLinkPath = "/alexaskill/api/device-linking"

// DeviceAuthorizer runs the identity service device grant
type DeviceAuthorizer interface {
	Initiate(ctx context.Context, clientID string, scopes []lwa.Scope) (*lwa.PendingAuthorization, error)
	Poll(ctx context.Context, pending *lwa.PendingAuthorization) (*lwa.Token, error)
}

// Syncer reconciles a user's skill once management credentials exist
type Syncer interface {
	SyncUser(ctx context.Context, userID string) error
}

// DeviceLinking obtains management credentials for a user through the
// device grant. The admin hands out a page link; opening it starts the
// grant and a background job waits for the user to approve it.
type DeviceLinking struct {
	links       tokenstore.Store[string]
	authorizer  DeviceAuthorizer
	pool        *worker.Pool
	users       users.Store
	syncer      Syncer
	credentials func() (clientID, clientSecret string)
	publicURL   func() string
	logger      *log.Logger

	mu     sync.Mutex
	grants map[string]*grant
}

// grant is one user's device authorization. ready closes once Initiate has
// returned, after which pending or err is set.
type grant struct {
	ready   chan struct{}
	pending *lwa.PendingAuthorization
	err     error
}

// NewDeviceLinking creates the flow. links maps page tokens to user ids and
// publicURL reports where users reach this service.
func NewDeviceLinking(
	links tokenstore.Store[string],
	authorizer DeviceAuthorizer,
	pool *worker.Pool,
	store users.Store,
	syncer Syncer,
	credentials func() (clientID, clientSecret string),
	publicURL func() string,
	logger *log.Logger,
) *DeviceLinking {
	return &DeviceLinking{
		links:       links,
		authorizer:  authorizer,
		pool:        pool,
		users:       store,
		syncer:      syncer,
		credentials: credentials,
		publicURL:   publicURL,
		logger:      logger.With("component", "device-linking"),
		grants:      make(map[string]*grant),
	}
}

// IssueLink returns a page URL the user opens to authorize skill management.
// The user's linkage is reset to LwaAuthPending.
func (d *DeviceLinking) IssueLink(ctx context.Context, userID string) (string, error) {
	_, err := d.users.Update(ctx, userID, func(u *users.User) error {
		if u.Skill == nil {
			return ErrNoLinkage
		}
		u.Skill.Status = users.StatusLwaAuthPending
		u.Skill.Error = ""
		return nil
	})
	if err != nil {
		return "", err
	}

	token, err := d.links.Issue(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("issuing link token: %w", err)
	}

	page, err := url.JoinPath(d.publicURL(), DeviceLinkPath)
	if err != nil {
		return "", fmt.Errorf("building link: %w", err)
	}
	return page + "?" + url.Values{"token": {token}}.Encode(), nil
}

// Page starts the device grant for the link token and returns what the user
// must enter. Reopening the page while the grant is pending shows the same code.
func (d *DeviceLinking) Page(ctx context.Context, token string) (*templates.DeviceLinkData, error) {
	userID, ok, err := d.links.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("looking up link: %w", err)
	}
	if !ok {
		return nil, ErrLinkExpired
	}

	for {
		d.mu.Lock()
		g, exists := d.grants[userID]
		if !exists {
			g = &grant{ready: make(chan struct{})}
			d.grants[userID] = g
			d.mu.Unlock()
			return d.start(ctx, userID, token, g)
		}
		d.mu.Unlock()

		select {
		case <-g.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if g.err != nil {
			return nil, g.err
		}
		if d.pool.Running(userID) {
			return deviceLinkData(g.pending), nil
		}
		// the poll job ended without clearing its slot
		d.forget(userID, g)
	}
}

// start initiates the grant for a reserved slot without holding d.mu, so
// other users and Cancel are not held up by the identity service.
func (d *DeviceLinking) start(ctx context.Context, userID, token string, g *grant) (*templates.DeviceLinkData, error) {
	defer close(g.ready)

	clientID, _ := d.credentials()
	if clientID == "" {
		g.err = ErrNoClientCredentials
		d.forget(userID, g)
		return nil, g.err
	}

	pending, err := d.authorizer.Initiate(ctx, clientID, lwa.DeviceFlowScopes)
	if err != nil {
		g.err = fmt.Errorf("starting device authorization: %w", err)
		d.forget(userID, g)
		return nil, g.err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.grants[userID] != g {
		g.err = ErrLinkExpired
		return nil, g.err
	}
	g.pending = pending
	if err := d.pool.Submit(userID, func(ctx context.Context) {
		d.await(ctx, userID, token, g)
	}); err != nil {
		delete(d.grants, userID)
		g.err = fmt.Errorf("scheduling poll: %w", err)
		return nil, g.err
	}
	d.logger.Info("device authorization started", "user", userID)

	return deviceLinkData(pending), nil
}

// Cancel stops a pending device grant for the user
func (d *DeviceLinking) Cancel(userID string) bool {
	d.mu.Lock()
	delete(d.grants, userID)
	d.mu.Unlock()
	return d.pool.Cancel(userID)
}

func (d *DeviceLinking) await(ctx context.Context, userID, token string, g *grant) {
	defer d.forget(userID, g)

	tok, err := d.authorizer.Poll(ctx, g.pending)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			d.logger.Debug("device authorization canceled", "user", userID)
			return
		}
		d.logger.Error("device authorization failed", "user", userID, "err", err)
		d.fail(userID, err)
		return
	}

	_, err = d.users.Update(ctx, userID, func(u *users.User) error {
		if u.Skill == nil {
			return ErrNoLinkage
		}
		u.DeviceToken = tok
		u.Skill.Status = users.StatusSkillCreating
		u.Skill.Error = ""
		return nil
	})
	if err != nil {
		d.logger.Error("saving device token", "user", userID, "err", err)
		return
	}
	d.logger.Info("device authorization complete", "user", userID)

	if err := d.links.Remove(ctx, token); err != nil {
		d.logger.Warn("removing used link", "user", userID, "err", err)
	}

	if err := d.syncer.SyncUser(ctx, userID); err != nil {
		d.logger.Error("syncing skill", "user", userID, "err", err)
	}
}

// fail records cause on the linkage. The job context may already be done.
func (d *DeviceLinking) fail(userID string, cause error) {
	_, err := d.users.Update(context.Background(), userID, func(u *users.User) error {
		if u.Skill == nil {
			return ErrNoLinkage
		}
		u.Skill.Status = users.StatusFailed
		u.Skill.Error = cause.Error()
		return nil
	})
	if err != nil {
		d.logger.Error("recording failure", "user", userID, "err", err)
	}
}

func (d *DeviceLinking) forget(userID string, g *grant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.grants[userID] == g {
		delete(d.grants, userID)
	}
}

func deviceLinkData(p *lwa.PendingAuthorization) *templates.DeviceLinkData {
	return &templates.DeviceLinkData{
		UserCode:        p.UserCode,
		VerificationURI: p.VerificationURI,
	}
}

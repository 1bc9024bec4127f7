package skill

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/wrale/alexa-media-skill/internal/alexa"
	"github.com/wrale/alexa-media-skill/internal/media"
	"github.com/wrale/alexa-media-skill/internal/session"
	"github.com/wrale/alexa-media-skill/internal/users"
)

var (
	// ErrUnhandled indicates no handler accepted a non-intent request
	ErrUnhandled = errors.New("unhandled request")

	// ErrUnknownUser indicates the access token maps to no linked user
	ErrUnknownUser = errors.New("unknown user")
)

const (
	msgNotImplemented = "This intent is not implemented yet."
	msgUserNotFound   = "User not found. Please relink your account."
	msgGenericError   = "Something went wrong, please try again."
)

// Dispatcher resolves the caller and runs the first matching handler
type Dispatcher struct {
	handlers []Handler
	users    users.Store
	sessions session.Store
	logger   *log.Logger
}

// NewDispatcher creates a dispatcher over handlers in the given order
func NewDispatcher(handlers []Handler, store users.Store, sessions session.Store, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: handlers,
		users:    store,
		sessions: sessions,
		logger:   logger,
	}
}

// Dispatch answers env. The voice platform's access token is the user id
// issued during account linking.
func (d *Dispatcher) Dispatch(ctx context.Context, env *alexa.RequestEnvelope) (*alexa.ResponseEnvelope, error) {
	req := &env.Request
	sys := env.Context.System

	user, err := d.users.Get(ctx, sys.User.AccessToken)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			return nil, err
		}
		d.logger.Warn("request from unknown user", "type", req.Type)
		if req.Type == alexa.TypeLaunch || req.Type == alexa.TypeIntent {
			return alexa.Tell(msgUserNotFound), nil
		}
		return nil, ErrUnknownUser
	}

	key := session.Key{UserID: user.ID, DeviceID: sys.Device.DeviceID}

	var resp *alexa.ResponseEnvelope
	err = d.sessions.With(ctx, key, func(st *session.State) error {
		in := &Input{
			Request:   req,
			User:      user,
			Principal: media.Principal{UserID: user.ID, Token: user.ServerToken},
			DeviceID:  sys.Device.DeviceID,
			Session:   st,
		}

		for _, h := range d.handlers {
			if !h.CanHandle(in) {
				continue
			}
			r, err := h.Handle(ctx, in)
			if err != nil {
				d.logger.Error("handler failed", "handler", h.Name(), "type", req.Type, "err", err)
				r = alexa.Tell(msgGenericError)
			}
			resp = r
			return nil
		}

		d.logger.Warn("no handler for request", "type", req.Type, "intent", req.IntentName())
		if req.Type == alexa.TypeIntent {
			resp = alexa.Tell(msgNotImplemented)
			return nil
		}
		return ErrUnhandled
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Package skill turns voice platform requests into playback directives.
//
// Handlers are checked in a fixed order and the first one whose CanHandle
// accepts a request handles it. Handlers read and change the session's
// queue and ask the media server for items.
package skill

import (
	"context"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/wrale/alexa-media-skill/internal/alexa"
	"github.com/wrale/alexa-media-skill/internal/media"
	"github.com/wrale/alexa-media-skill/internal/session"
	"github.com/wrale/alexa-media-skill/internal/users"
)

// Input is everything a handler may look at for one request
type Input struct {
	Request   *alexa.Request
	User      *users.User
	Principal media.Principal
	DeviceID  string
	Session   *session.State
}

// Handler matches and answers one kind of request
type Handler interface {
	Name() string
	CanHandle(in *Input) bool
	Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error)
}

// Deps are the collaborators handlers use
type Deps struct {
	Library   media.Library
	Tracker   media.Tracker
	ServerURL func() string
	Logger    *log.Logger
}

// StreamURL builds the universal audio stream URL for an item
func StreamURL(server, itemID, token string) string {
	q := url.Values{
		"api_key":    {token},
		"audioCodec": {"mp3"},
		"container":  {"mp3"},
	}
	return strings.TrimSuffix(server, "/") + "/Audio/" + url.PathEscape(itemID) + "/universal?" + q.Encode()
}

func (d *Deps) play(in *Input, behavior, itemID string, offsetMs int64, expectedPrevious string) *alexa.ResponseEnvelope {
	return alexa.Play(behavior, StreamURL(d.ServerURL(), itemID, in.Principal.Token), itemID, offsetMs, expectedPrevious)
}

// Handlers returns the registry in dispatch order. Fallback stays last.
func Handlers(d *Deps) []Handler {
	return []Handler{
		&launchHandler{d},
		&playHandler{d},
		&pauseHandler{d},
		&nextHandler{d},
		&previousHandler{d},
		&resumeHandler{d},

		&playLastAddedHandler{d},
		&playPlaylistHandler{d},
		&playFavoritesHandler{d},
		&playArtistSongsHandler{d},
		&playAlbumHandler{d},

		&favoriteHandler{d, alexa.IntentMarkFavorite, true},
		&favoriteHandler{d, alexa.IntentUnmarkFavorite, false},
		&mediaInfoHandler{d},

		&playbackFailedHandler{d},
		&playbackFinishedHandler{d},
		&playbackNearlyFinishedHandler{d},
		&playbackStartedHandler{d},
		&playbackStoppedHandler{d},
		&sessionEndedHandler{d},

		&exceptionHandler{d},
		&fallbackHandler{d},
	}
}

func isIntent(in *Input, names ...string) bool {
	name := in.Request.IntentName()
	if name == "" {
		return false
	}
	for _, n := range names {
		if name == n {
			return true
		}
	}
	return false
}

func isType(in *Input, types ...string) bool {
	for _, t := range types {
		if in.Request.Type == t {
			return true
		}
	}
	return false
}

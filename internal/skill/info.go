package skill

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wrale/alexa-media-skill/internal/alexa"
	"github.com/wrale/alexa-media-skill/internal/media"
)

const msgMediaNotFound = "Sorry I could not find the media."

type favoriteHandler struct {
	*Deps
	intent   string
	favorite bool
}

func (h *favoriteHandler) Name() string {
	if h.favorite {
		return "MarkFavorite"
	}
	return "UnmarkFavorite"
}

func (h *favoriteHandler) CanHandle(in *Input) bool {
	return isIntent(in, h.intent)
}

func (h *favoriteHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	if !in.Session.Playing() {
		return alexa.Tell(msgMediaNotFound), nil
	}

	err := h.Library.SetFavorite(ctx, in.Principal, in.Session.NowPlayingItemID, h.favorite)
	if errors.Is(err, media.ErrNotFound) {
		return alexa.Tell(msgMediaNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("setting favorite: %w", err)
	}

	if h.favorite {
		return alexa.Tell("Media added to favorites list."), nil
	}
	return alexa.Tell("Media removed from favorites list."), nil
}

type mediaInfoHandler struct{ *Deps }

func (h *mediaInfoHandler) Name() string { return "MediaInfo" }

func (h *mediaInfoHandler) CanHandle(in *Input) bool {
	return isIntent(in, alexa.IntentMediaInfo)
}

func (h *mediaInfoHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	const nothing = "There is currently no media playing."

	if !in.Session.Playing() {
		return alexa.Tell(nothing), nil
	}
	item, err := h.Library.GetItem(ctx, in.Principal, in.Session.NowPlayingItemID)
	if errors.Is(err, media.ErrNotFound) {
		return alexa.Tell(nothing), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading current item: %w", err)
	}
	return alexa.Tell(describe(item)), nil
}

func describe(item *media.Item) string {
	text := "Currently playing " + item.Name
	if len(item.Artists) > 0 {
		text += " from " + strings.Join(item.Artists, ", ")
	}
	return text
}

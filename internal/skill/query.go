package skill

import (
	"context"
	"fmt"

	"github.com/wrale/alexa-media-skill/internal/alexa"
	"github.com/wrale/alexa-media-skill/internal/media"
)

const lastAddedLimit = 50

// playItems replaces the queue with items and starts the first one
func (d *Deps) playItems(in *Input, items []media.Item) *alexa.ResponseEnvelope {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	in.Session.ReplaceQueue(ids)
	return d.play(in, alexa.BehaviorReplaceAll, in.Session.NowPlayingItemID, 0, "")
}

func audioIn(parentID string) media.Query {
	return media.Query{
		ParentID:   parentID,
		Recursive:  true,
		MediaTypes: []string{media.MediaTypeAudio},
	}
}

type playLastAddedHandler struct{ *Deps }

func (h *playLastAddedHandler) Name() string { return "PlayLastAdded" }

func (h *playLastAddedHandler) CanHandle(in *Input) bool {
	return isIntent(in, alexa.IntentPlayLastAdded)
}

func (h *playLastAddedHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	items, err := h.Library.Search(ctx, in.Principal, media.Query{
		ItemTypes:         []string{media.TypeAudio},
		Recursive:         true,
		SortByDateCreated: true,
		Limit:             lastAddedLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("searching last added: %w", err)
	}
	if len(items) == 0 {
		return alexa.Tell("No recently added songs found."), nil
	}
	return h.playItems(in, items), nil
}

type playPlaylistHandler struct{ *Deps }

func (h *playPlaylistHandler) Name() string { return "PlayPlaylist" }

func (h *playPlaylistHandler) CanHandle(in *Input) bool {
	return isIntent(in, alexa.IntentPlayPlaylist)
}

func (h *playPlaylistHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	name := in.Request.Slot("playlist")

	playlists, err := h.Library.Search(ctx, in.Principal, media.Query{
		Term:      name,
		ItemTypes: []string{media.TypePlaylist},
		Recursive: true,
	})
	if err != nil {
		return nil, fmt.Errorf("searching playlists: %w", err)
	}
	if len(playlists) == 0 {
		return alexa.Tell("Could not find a playlist with the name " + name), nil
	}

	items, err := h.Library.Search(ctx, in.Principal, audioIn(playlists[0].ID))
	if err != nil {
		return nil, fmt.Errorf("listing playlist: %w", err)
	}
	if len(items) == 0 {
		return alexa.Tell("The playlist is empty."), nil
	}
	return h.playItems(in, items), nil
}

type playFavoritesHandler struct{ *Deps }

func (h *playFavoritesHandler) Name() string { return "PlayFavorites" }

func (h *playFavoritesHandler) CanHandle(in *Input) bool {
	return isIntent(in, alexa.IntentPlayFavorites)
}

func (h *playFavoritesHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	items, err := h.Library.Search(ctx, in.Principal, media.Query{
		IsFavorite: true,
		Recursive:  true,
		MediaTypes: []string{media.MediaTypeAudio},
	})
	if err != nil {
		return nil, fmt.Errorf("searching favorites: %w", err)
	}
	if len(items) == 0 {
		return alexa.Tell("No favorite items found."), nil
	}
	return h.playItems(in, items), nil
}

type playArtistSongsHandler struct{ *Deps }

func (h *playArtistSongsHandler) Name() string { return "PlayArtistSongs" }

func (h *playArtistSongsHandler) CanHandle(in *Input) bool {
	return isIntent(in, alexa.IntentPlayArtistSongs)
}

func (h *playArtistSongsHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	musician := in.Request.Slot("musician")

	artists, err := h.Library.Search(ctx, in.Principal, media.Query{
		Term:      musician,
		ItemTypes: []string{media.TypeMusicArtist},
		Recursive: true,
	})
	if err != nil {
		return nil, fmt.Errorf("searching artists: %w", err)
	}
	if len(artists) == 0 {
		return alexa.Tell(fmt.Sprintf("Sorry, I couldn't find any artists with the name %s.", musician)), nil
	}

	items, err := h.Library.Search(ctx, in.Principal, media.Query{
		ArtistIDs:  []string{artists[0].ID},
		Recursive:  true,
		MediaTypes: []string{media.MediaTypeAudio},
	})
	if err != nil {
		return nil, fmt.Errorf("listing artist songs: %w", err)
	}
	if len(items) == 0 {
		return alexa.Tell(fmt.Sprintf("There are no songs with the artist %s.", musician)), nil
	}
	return h.playItems(in, items), nil
}

type playAlbumHandler struct{ *Deps }

func (h *playAlbumHandler) Name() string { return "PlayAlbum" }

func (h *playAlbumHandler) CanHandle(in *Input) bool {
	return isIntent(in, alexa.IntentPlayAlbum)
}

func (h *playAlbumHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	album := in.Request.Slot("album")
	musician := in.Request.Slot("musician")

	q := media.Query{
		Term:      album,
		ItemTypes: []string{media.TypeMusicAlbum},
		Recursive: true,
	}
	if musician != "" {
		artists, err := h.Library.Search(ctx, in.Principal, media.Query{
			Term:      musician,
			ItemTypes: []string{media.TypeMusicArtist},
			Recursive: true,
		})
		if err != nil {
			return nil, fmt.Errorf("searching artists: %w", err)
		}
		if len(artists) == 0 {
			return alexa.Tell(fmt.Sprintf("Sorry, I couldn't find any albums with the artist %s.", musician)), nil
		}
		q.ArtistIDs = []string{artists[0].ID}
	}

	albums, err := h.Library.Search(ctx, in.Principal, q)
	if err != nil {
		return nil, fmt.Errorf("searching albums: %w", err)
	}
	if len(albums) == 0 {
		if musician != "" {
			return alexa.Tell(fmt.Sprintf("Sorry, I couldn't find any albums with the name %s by %s.", album, musician)), nil
		}
		return alexa.Tell(fmt.Sprintf("Sorry, I couldn't find any albums with the name %s.", album)), nil
	}

	items, err := h.Library.Search(ctx, in.Principal, audioIn(albums[0].ID))
	if err != nil {
		return nil, fmt.Errorf("listing album: %w", err)
	}
	if len(items) == 0 {
		return alexa.Tell(fmt.Sprintf("There are no songs in the album %s.", album)), nil
	}
	return h.playItems(in, items), nil
}

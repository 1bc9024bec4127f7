// Package media defines what the skill needs from the media server
package media

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates a missing item
	ErrNotFound = errors.New("item not found")

	// ErrInvalidCredentials indicates a failed username/password login
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Item types understood by Search
const (
	TypeAudio       = "Audio"
	TypeMusicAlbum  = "MusicAlbum"
	TypeMusicArtist = "MusicArtist"
	TypePlaylist    = "Playlist"

	MediaTypeAudio = "Audio"
)

// Principal is the server identity calls are made as
type Principal struct {
	UserID string
	Token  string
}

// Item is a library entry
type Item struct {
	ID      string   `json:"Id"`
	Name    string   `json:"Name"`
	Type    string   `json:"Type"`
	Album   string   `json:"Album,omitempty"`
	Artists []string `json:"Artists,omitempty"`
}

// Query filters a library search
type Query struct {
	Term              string
	ItemTypes         []string
	MediaTypes        []string
	ArtistIDs         []string
	ParentID          string
	Recursive         bool
	IsFavorite        bool
	SortByDateCreated bool
	Limit             int
}

// Library searches and annotates library items
type Library interface {
	Search(ctx context.Context, p Principal, q Query) ([]Item, error)
	GetItem(ctx context.Context, p Principal, id string) (*Item, error)
	SetFavorite(ctx context.Context, p Principal, id string, favorite bool) error
}

// PlaybackEvent is a now-playing report for one device
type PlaybackEvent struct {
	ItemID     string
	DeviceID   string
	PositionMs int64
	IsPaused   bool
}

// Tracker records now-playing state on the server
type Tracker interface {
	OnPlaybackStart(ctx context.Context, p Principal, ev PlaybackEvent) error
	OnPlaybackProgress(ctx context.Context, p Principal, ev PlaybackEvent) error
}

// AuthResult is a successful login
type AuthResult struct {
	UserID      string
	AccessToken string
}

// Authenticator checks server credentials
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*AuthResult, error)
}

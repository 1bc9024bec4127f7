// Package alexa holds the voice platform's request and response shapes
package alexa

// Request types
const (
	TypeLaunch             = "LaunchRequest"
	TypeIntent             = "IntentRequest"
	TypeSessionEnded       = "SessionEndedRequest"
	TypeExceptionEncounter = "System.ExceptionEncountered"

	TypePlaybackStarted        = "AudioPlayer.PlaybackStarted"
	TypePlaybackNearlyFinished = "AudioPlayer.PlaybackNearlyFinished"
	TypePlaybackFinished       = "AudioPlayer.PlaybackFinished"
	TypePlaybackStopped        = "AudioPlayer.PlaybackStopped"
	TypePlaybackFailed         = "AudioPlayer.PlaybackFailed"

	TypeControllerNext     = "PlaybackController.NextCommandIssued"
	TypeControllerPrevious = "PlaybackController.PreviousCommandIssued"
	TypeControllerPlay     = "PlaybackController.PlayCommandIssued"
	TypeControllerPause    = "PlaybackController.PauseCommandIssued"
)

// Built-in and custom intent names
const (
	IntentPause    = "AMAZON.PauseIntent"
	IntentStop     = "AMAZON.StopIntent"
	IntentCancel   = "AMAZON.CancelIntent"
	IntentResume   = "AMAZON.ResumeIntent"
	IntentNext     = "AMAZON.NextIntent"
	IntentPrevious = "AMAZON.PreviousIntent"
	IntentFallback = "AMAZON.FallbackIntent"

	IntentPlayLastAdded   = "PlayLastAddedIntent"
	IntentPlayPlaylist    = "PlayPlaylistIntent"
	IntentPlayFavorites   = "PlayFavoritesIntent"
	IntentPlayArtistSongs = "PlayArtistSongsIntent"
	IntentPlayAlbum       = "PlayAlbumIntent"
	IntentMarkFavorite    = "MarkFavoriteIntent"
	IntentUnmarkFavorite  = "UnmarkFavoriteIntent"
	IntentMediaInfo       = "MediaInfoIntent"
)

// RequestEnvelope is the body the voice platform posts
type RequestEnvelope struct {
	Version string  `json:"version"`
	Context Context `json:"context"`
	Request Request `json:"request"`
}

type Context struct {
	System System `json:"System"`
}

type System struct {
	User        User   `json:"user"`
	Device      Device `json:"device"`
	APIEndpoint string `json:"apiEndpoint,omitempty"`
}

type User struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken,omitempty"`
}

type Device struct {
	DeviceID string `json:"deviceId"`
}

// Request is the union of every request type the skill handles
type Request struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp,omitempty"`
	Locale    string `json:"locale,omitempty"`

	Intent *Intent `json:"intent,omitempty"`

	// AudioPlayer events
	Token                string `json:"token,omitempty"`
	OffsetInMilliseconds int64  `json:"offsetInMilliseconds,omitempty"`

	// PlaybackFailed, ExceptionEncountered and SessionEnded
	Error  *Error `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type Intent struct {
	Name  string          `json:"name"`
	Slots map[string]Slot `json:"slots,omitempty"`
}

type Slot struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// IntentName returns the intent name of an IntentRequest, or ""
func (r *Request) IntentName() string {
	if r.Type != TypeIntent || r.Intent == nil {
		return ""
	}
	return r.Intent.Name
}

// Slot returns the value of a named slot, or ""
func (r *Request) Slot(name string) string {
	if r.Intent == nil {
		return ""
	}
	return r.Intent.Slots[name].Value
}

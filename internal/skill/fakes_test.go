package skill

import (
	"context"
	"io"
	"slices"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/wrale/alexa-media-skill/internal/alexa"
	"github.com/wrale/alexa-media-skill/internal/media"
	"github.com/wrale/alexa-media-skill/internal/session"
	"github.com/wrale/alexa-media-skill/internal/users"
)

const testServer = "http://jf.local"

// fakeLibrary answers searches from a fixed catalog
type fakeLibrary struct {
	items     []media.Item
	parents   map[string][]string // parent id -> child ids
	byArtist  map[string][]string // artist id -> song ids
	favorites map[string]bool

	searches     []media.Query
	favoriteSets int
	err          error
}

func (f *fakeLibrary) find(id string) (media.Item, bool) {
	for _, it := range f.items {
		if it.ID == id {
			return it, true
		}
	}
	return media.Item{}, false
}

func (f *fakeLibrary) Search(ctx context.Context, p media.Principal, q media.Query) ([]media.Item, error) {
	f.searches = append(f.searches, q)
	if f.err != nil {
		return nil, f.err
	}

	var ids []string
	switch {
	case q.ParentID != "":
		ids = f.parents[q.ParentID]
	case len(q.ArtistIDs) > 0 && len(q.ItemTypes) == 0:
		ids = f.byArtist[q.ArtistIDs[0]]
	default:
		for _, it := range f.items {
			if len(q.ItemTypes) > 0 && !slices.Contains(q.ItemTypes, it.Type) {
				continue
			}
			if q.IsFavorite && !f.favorites[it.ID] {
				continue
			}
			if q.Term != "" && it.Name != q.Term {
				continue
			}
			ids = append(ids, it.ID)
		}
	}

	var out []media.Item
	for _, id := range ids {
		if it, ok := f.find(id); ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeLibrary) GetItem(ctx context.Context, p media.Principal, id string) (*media.Item, error) {
	it, ok := f.find(id)
	if !ok {
		return nil, media.ErrNotFound
	}
	return &it, nil
}

func (f *fakeLibrary) SetFavorite(ctx context.Context, p media.Principal, id string, fav bool) error {
	f.favoriteSets++
	if _, ok := f.find(id); !ok {
		return media.ErrNotFound
	}
	if f.favorites == nil {
		f.favorites = make(map[string]bool)
	}
	f.favorites[id] = fav
	return nil
}

type fakeTracker struct {
	starts   []media.PlaybackEvent
	progress []media.PlaybackEvent
}

func (f *fakeTracker) OnPlaybackStart(ctx context.Context, p media.Principal, ev media.PlaybackEvent) error {
	f.starts = append(f.starts, ev)
	return nil
}

func (f *fakeTracker) OnPlaybackProgress(ctx context.Context, p media.Principal, ev media.PlaybackEvent) error {
	f.progress = append(f.progress, ev)
	return nil
}

func newCatalog() *fakeLibrary {
	return &fakeLibrary{
		items: []media.Item{
			{ID: "A", Name: "Song A", Type: media.TypeAudio, Artists: []string{"Band"}},
			{ID: "B", Name: "Song B", Type: media.TypeAudio, Artists: []string{"Band", "Guest"}},
			{ID: "C", Name: "Song C", Type: media.TypeAudio},
			{ID: "art1", Name: "Band", Type: media.TypeMusicArtist},
			{ID: "alb1", Name: "Blue", Type: media.TypeMusicAlbum},
			{ID: "alb2", Name: "Empty", Type: media.TypeMusicAlbum},
			{ID: "pl1", Name: "Road", Type: media.TypePlaylist},
		},
		parents: map[string][]string{
			"alb1": {"B", "C"},
			"pl1":  {"C", "A"},
		},
		byArtist:  map[string][]string{"art1": {"A", "B"}},
		favorites: map[string]bool{"B": true},
	}
}

type harness struct {
	lib        *fakeLibrary
	tracker    *fakeTracker
	sessions   *session.Memory
	dispatcher *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := users.NewMemoryStore()
	if err := store.Put(context.Background(), &users.User{ID: "u1", ServerToken: "tok"}); err != nil {
		t.Fatal(err)
	}
	h := &harness{
		lib:      newCatalog(),
		tracker:  &fakeTracker{},
		sessions: session.NewMemory(),
	}
	logger := log.New(io.Discard)
	deps := &Deps{
		Library:   h.lib,
		Tracker:   h.tracker,
		ServerURL: func() string { return testServer },
		Logger:    logger,
	}
	h.dispatcher = NewDispatcher(Handlers(deps), store, h.sessions, logger)
	return h
}

var testKey = session.Key{UserID: "u1", DeviceID: "dev"}

func (h *harness) seed(st session.State) {
	h.sessions.With(context.Background(), testKey, func(s *session.State) error {
		*s = st
		return nil
	})
}

func (h *harness) state() session.State {
	return h.sessions.Snapshot(testKey)
}

func envelope(req alexa.Request) *alexa.RequestEnvelope {
	return &alexa.RequestEnvelope{
		Version: "1.0",
		Context: alexa.Context{System: alexa.System{
			User:   alexa.User{UserID: "amzn1", AccessToken: "u1"},
			Device: alexa.Device{DeviceID: "dev"},
		}},
		Request: req,
	}
}

func intent(name string, slots ...string) alexa.Request {
	in := &alexa.Intent{Name: name, Slots: map[string]alexa.Slot{}}
	for i := 0; i+1 < len(slots); i += 2 {
		in.Slots[slots[i]] = alexa.Slot{Name: slots[i], Value: slots[i+1]}
	}
	return alexa.Request{Type: alexa.TypeIntent, Intent: in}
}

func (h *harness) dispatch(t *testing.T, req alexa.Request) *alexa.ResponseEnvelope {
	t.Helper()
	resp, err := h.dispatcher.Dispatch(context.Background(), envelope(req))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	return resp
}

func playedToken(t *testing.T, resp *alexa.ResponseEnvelope) (string, string) {
	t.Helper()
	stream, behavior, ok := resp.PlayStream()
	if !ok {
		t.Fatalf("response has no play directive: %+v", resp.Response)
	}
	return stream.Token, behavior
}

func isEmpty(resp *alexa.ResponseEnvelope) bool {
	r := resp.Response
	return r.OutputSpeech == nil && len(r.Directives) == 0 && r.ShouldEndSession == nil
}

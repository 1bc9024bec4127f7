package skill

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wrale/alexa-media-skill/internal/alexa"
	"github.com/wrale/alexa-media-skill/internal/session"
)

func TestNextPreviousScenario(t *testing.T) {
	h := newHarness(t)
	h.seed(session.State{Queue: []string{"A", "B", "C"}, NowPlayingItemID: "B"})

	resp := h.dispatch(t, intent(alexa.IntentNext))
	if tok, behavior := playedToken(t, resp); tok != "C" || behavior != alexa.BehaviorReplaceAll {
		t.Errorf("Next played %s with %s, want C with REPLACE_ALL", tok, behavior)
	}
	if h.state().NowPlayingItemID != "C" {
		t.Errorf("after Next now playing = %q, want C", h.state().NowPlayingItemID)
	}

	before := h.state()
	resp = h.dispatch(t, intent(alexa.IntentNext))
	if !isEmpty(resp) {
		t.Errorf("Next at last item returned %+v, want empty", resp.Response)
	}
	if diff := cmp.Diff(before, h.state()); diff != "" {
		t.Errorf("Next at boundary changed state (-want +got):\n%s", diff)
	}

	resp = h.dispatch(t, intent(alexa.IntentPrevious))
	if tok, _ := playedToken(t, resp); tok != "B" {
		t.Errorf("Previous played %s, want B", tok)
	}
}

func TestNextThenPreviousRestores(t *testing.T) {
	for _, start := range []string{"A", "B"} {
		t.Run(start, func(t *testing.T) {
			h := newHarness(t)
			h.seed(session.State{Queue: []string{"A", "B", "C"}, NowPlayingItemID: start})

			h.dispatch(t, alexa.Request{Type: alexa.TypeControllerNext})
			h.dispatch(t, alexa.Request{Type: alexa.TypeControllerPrevious})

			if got := h.state().NowPlayingItemID; got != start {
				t.Errorf("now playing = %q, want %q", got, start)
			}
		})
	}
}

func TestBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		state session.State
		req   alexa.Request
	}{
		{"previous at first", session.State{Queue: []string{"A", "B"}, NowPlayingItemID: "A"}, intent(alexa.IntentPrevious)},
		{"next at last", session.State{Queue: []string{"A", "B"}, NowPlayingItemID: "B"}, intent(alexa.IntentNext)},
		{"next when idle", session.State{}, intent(alexa.IntentNext)},
		{"next when not started", session.State{Queue: []string{"A"}}, intent(alexa.IntentNext)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.seed(tt.state)
			if resp := h.dispatch(t, tt.req); !isEmpty(resp) {
				t.Errorf("got %+v, want empty response", resp.Response)
			}
			if diff := cmp.Diff(tt.state, h.state()); diff != "" {
				t.Errorf("state changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLaunch(t *testing.T) {
	t.Run("empty queue asks", func(t *testing.T) {
		h := newHarness(t)
		resp := h.dispatch(t, alexa.Request{Type: alexa.TypeLaunch})
		if !strings.Contains(resp.Speech(), "what can I play") {
			t.Errorf("speech = %q", resp.Speech())
		}
		if len(resp.Response.Directives) != 0 {
			t.Errorf("launch on empty queue sent directives %+v", resp.Response.Directives)
		}
		if resp.Response.Reprompt == nil {
			t.Error("launch did not reprompt")
		}
	})

	t.Run("queued starts first", func(t *testing.T) {
		h := newHarness(t)
		h.seed(session.State{Queue: []string{"A", "B"}})
		resp := h.dispatch(t, alexa.Request{Type: alexa.TypeLaunch})
		if tok, behavior := playedToken(t, resp); tok != "A" || behavior != alexa.BehaviorReplaceAll {
			t.Errorf("played %s with %s", tok, behavior)
		}
		if h.state().NowPlayingItemID != "A" {
			t.Error("launch did not mark first item playing")
		}
	})

	t.Run("playing resumes at offset", func(t *testing.T) {
		h := newHarness(t)
		h.seed(session.State{Queue: []string{"A", "B"}, NowPlayingItemID: "B", PositionMs: 4200})
		stream, _, _ := h.dispatch(t, alexa.Request{Type: alexa.TypeLaunch}).PlayStream()
		if stream == nil || stream.Token != "B" || stream.OffsetInMilliseconds != 4200 {
			t.Errorf("stream = %+v, want B at 4200", stream)
		}
	})
}

func TestPlayQueries(t *testing.T) {
	tests := []struct {
		name      string
		req       alexa.Request
		wantQueue []string
		wantSpeak string
	}{
		{"album", intent(alexa.IntentPlayAlbum, "album", "Blue"), []string{"B", "C"}, ""},
		{"album by artist", intent(alexa.IntentPlayAlbum, "album", "Blue", "musician", "Band"), []string{"B", "C"}, ""},
		{"album unknown", intent(alexa.IntentPlayAlbum, "album", "Red"), nil, "Sorry, I couldn't find any albums with the name Red."},
		{"album unknown artist", intent(alexa.IntentPlayAlbum, "album", "Blue", "musician", "Nobody"), nil, "Sorry, I couldn't find any albums with the artist Nobody."},
		{"album empty", intent(alexa.IntentPlayAlbum, "album", "Empty"), nil, "There are no songs in the album Empty."},
		{"artist", intent(alexa.IntentPlayArtistSongs, "musician", "Band"), []string{"A", "B"}, ""},
		{"artist unknown", intent(alexa.IntentPlayArtistSongs, "musician", "Nobody"), nil, "Sorry, I couldn't find any artists with the name Nobody."},
		{"playlist", intent(alexa.IntentPlayPlaylist, "playlist", "Road"), []string{"C", "A"}, ""},
		{"playlist unknown", intent(alexa.IntentPlayPlaylist, "playlist", "Gym"), nil, "Could not find a playlist with the name Gym"},
		{"favorites", intent(alexa.IntentPlayFavorites), []string{"B"}, ""},
		{"last added", intent(alexa.IntentPlayLastAdded), []string{"A", "B", "C"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.seed(session.State{Queue: []string{"X"}, NowPlayingItemID: "X"})
			resp := h.dispatch(t, tt.req)

			if tt.wantSpeak != "" {
				if resp.Speech() != tt.wantSpeak {
					t.Errorf("speech = %q, want %q", resp.Speech(), tt.wantSpeak)
				}
				if h.state().NowPlayingItemID != "X" {
					t.Error("failed query changed the session")
				}
				return
			}

			st := h.state()
			if diff := cmp.Diff(tt.wantQueue, st.Queue); diff != "" {
				t.Errorf("queue mismatch (-want +got):\n%s", diff)
			}
			if st.Queue[0] != st.NowPlayingItemID {
				t.Errorf("queue[0] = %q but now playing = %q", st.Queue[0], st.NowPlayingItemID)
			}
			tok, behavior := playedToken(t, resp)
			if tok != tt.wantQueue[0] || behavior != alexa.BehaviorReplaceAll {
				t.Errorf("played %s with %s", tok, behavior)
			}
		})
	}
}

func TestAlbumByArtistFiltersArtist(t *testing.T) {
	h := newHarness(t)
	h.dispatch(t, intent(alexa.IntentPlayAlbum, "album", "Blue", "musician", "Band"))

	if len(h.lib.searches) < 2 {
		t.Fatalf("searches = %+v", h.lib.searches)
	}
	albumQuery := h.lib.searches[1]
	if diff := cmp.Diff([]string{"art1"}, albumQuery.ArtistIDs); diff != "" {
		t.Errorf("album search artist filter (-want +got):\n%s", diff)
	}
}

func TestStreamURLInDirective(t *testing.T) {
	h := newHarness(t)
	stream, _, _ := h.dispatch(t, intent(alexa.IntentPlayArtistSongs, "musician", "Band")).PlayStream()
	want := testServer + "/Audio/A/universal?api_key=tok&audioCodec=mp3&container=mp3"
	if stream.URL != want {
		t.Errorf("stream URL = %q, want %q", stream.URL, want)
	}
}

func TestPauseKeepsNowPlaying(t *testing.T) {
	for _, req := range []alexa.Request{
		intent(alexa.IntentPause),
		intent(alexa.IntentStop),
		intent(alexa.IntentCancel),
		{Type: alexa.TypeControllerPause},
	} {
		h := newHarness(t)
		h.seed(session.State{Queue: []string{"A"}, NowPlayingItemID: "A"})
		if resp := h.dispatch(t, req); !resp.IsStop() {
			t.Errorf("%s %s: no stop directive", req.Type, req.IntentName())
		}
		if h.state().NowPlayingItemID != "A" {
			t.Errorf("%s cleared now playing", req.IntentName())
		}
	}
}

func TestResume(t *testing.T) {
	h := newHarness(t)
	if got := h.dispatch(t, intent(alexa.IntentResume)).Speech(); got != "There is no media currently playing." {
		t.Errorf("resume idle speech = %q", got)
	}

	h.seed(session.State{Queue: []string{"A"}, NowPlayingItemID: "A", PositionMs: 900})
	stream, _, ok := h.dispatch(t, intent(alexa.IntentResume)).PlayStream()
	if !ok || stream.Token != "A" || stream.OffsetInMilliseconds != 900 {
		t.Errorf("resume stream = %+v", stream)
	}
}

func TestPlayCommand(t *testing.T) {
	h := newHarness(t)
	if resp := h.dispatch(t, alexa.Request{Type: alexa.TypeControllerPlay}); !isEmpty(resp) {
		t.Errorf("play when idle = %+v, want empty", resp.Response)
	}

	h.seed(session.State{Queue: []string{"A", "B"}})
	if tok, behavior := playedToken(t, h.dispatch(t, alexa.Request{Type: alexa.TypeControllerPlay})); tok != "A" || behavior != alexa.BehaviorEnqueue {
		t.Errorf("played %s with %s, want A with ENQUEUE", tok, behavior)
	}
}

func TestFavorite(t *testing.T) {
	t.Run("nothing playing", func(t *testing.T) {
		h := newHarness(t)
		resp := h.dispatch(t, intent(alexa.IntentMarkFavorite))
		if resp.Speech() != msgMediaNotFound {
			t.Errorf("speech = %q", resp.Speech())
		}
		if h.lib.favoriteSets != 0 {
			t.Errorf("library mutated %d times", h.lib.favoriteSets)
		}
	})

	t.Run("mark and unmark", func(t *testing.T) {
		h := newHarness(t)
		h.seed(session.State{Queue: []string{"A"}, NowPlayingItemID: "A"})

		if got := h.dispatch(t, intent(alexa.IntentMarkFavorite)).Speech(); got != "Media added to favorites list." {
			t.Errorf("mark speech = %q", got)
		}
		if !h.lib.favorites["A"] {
			t.Error("item not marked")
		}
		if got := h.dispatch(t, intent(alexa.IntentUnmarkFavorite)).Speech(); got != "Media removed from favorites list." {
			t.Errorf("unmark speech = %q", got)
		}
		if h.lib.favorites["A"] {
			t.Error("item still marked")
		}
	})
}

func TestMediaInfo(t *testing.T) {
	tests := []struct {
		playing string
		want    string
	}{
		{"", "There is currently no media playing."},
		{"C", "Currently playing Song C"},
		{"B", "Currently playing Song B from Band, Guest"},
	}
	for _, tt := range tests {
		h := newHarness(t)
		h.seed(session.State{Queue: []string{"A", "B", "C"}, NowPlayingItemID: tt.playing})
		if got := h.dispatch(t, intent(alexa.IntentMediaInfo)).Speech(); got != tt.want {
			t.Errorf("playing %q: speech = %q, want %q", tt.playing, got, tt.want)
		}
	}
}

func TestPlaybackEvents(t *testing.T) {
	t.Run("nearly finished enqueues successor", func(t *testing.T) {
		h := newHarness(t)
		h.seed(session.State{Queue: []string{"A", "B"}, NowPlayingItemID: "A"})
		resp := h.dispatch(t, alexa.Request{Type: alexa.TypePlaybackNearlyFinished, Token: "A"})
		stream, behavior, ok := resp.PlayStream()
		if !ok || stream.Token != "B" || behavior != alexa.BehaviorEnqueue || stream.ExpectedPreviousToken != "A" {
			t.Errorf("stream = %+v behavior = %s", stream, behavior)
		}
	})

	t.Run("nearly finished at end", func(t *testing.T) {
		h := newHarness(t)
		h.seed(session.State{Queue: []string{"A", "B"}, NowPlayingItemID: "B"})
		if resp := h.dispatch(t, alexa.Request{Type: alexa.TypePlaybackNearlyFinished, Token: "B"}); !isEmpty(resp) {
			t.Errorf("got %+v, want empty", resp.Response)
		}
	})

	t.Run("started tracks item", func(t *testing.T) {
		h := newHarness(t)
		h.seed(session.State{Queue: []string{"A", "B"}, NowPlayingItemID: "A"})
		h.dispatch(t, alexa.Request{Type: alexa.TypePlaybackStarted, Token: "B"})
		if h.state().NowPlayingItemID != "B" {
			t.Errorf("now playing = %q, want B", h.state().NowPlayingItemID)
		}
		if len(h.tracker.starts) != 1 || h.tracker.starts[0].ItemID != "B" || h.tracker.starts[0].DeviceID != "dev" {
			t.Errorf("tracker starts = %+v", h.tracker.starts)
		}
	})

	t.Run("stopped records position", func(t *testing.T) {
		h := newHarness(t)
		h.seed(session.State{Queue: []string{"A"}, NowPlayingItemID: "A"})
		h.dispatch(t, alexa.Request{Type: alexa.TypePlaybackStopped, Token: "A", OffsetInMilliseconds: 3100})
		if h.state().PositionMs != 3100 {
			t.Errorf("position = %d, want 3100", h.state().PositionMs)
		}
		if len(h.tracker.progress) != 1 || !h.tracker.progress[0].IsPaused {
			t.Errorf("tracker progress = %+v", h.tracker.progress)
		}
	})

	t.Run("failed apologizes", func(t *testing.T) {
		h := newHarness(t)
		resp := h.dispatch(t, alexa.Request{Type: alexa.TypePlaybackFailed, Error: &alexa.Error{Type: "MEDIA_ERROR_UNKNOWN"}})
		if !strings.HasPrefix(resp.Speech(), "Something went wrong while playing") {
			t.Errorf("speech = %q", resp.Speech())
		}
	})

	t.Run("finished and session ended acknowledge", func(t *testing.T) {
		h := newHarness(t)
		for _, typ := range []string{alexa.TypePlaybackFinished, alexa.TypeSessionEnded} {
			if resp := h.dispatch(t, alexa.Request{Type: typ}); !isEmpty(resp) {
				t.Errorf("%s: got %+v, want empty", typ, resp.Response)
			}
		}
	})
}

func TestFallbacks(t *testing.T) {
	h := newHarness(t)

	if got := h.dispatch(t, intent(alexa.IntentFallback)).Speech(); got != "I could not understand that, please try again." {
		t.Errorf("fallback speech = %q", got)
	}
	if got := h.dispatch(t, intent("SomethingNewIntent")).Speech(); got != msgNotImplemented {
		t.Errorf("unknown intent speech = %q", got)
	}
	if got := h.dispatch(t, alexa.Request{Type: alexa.TypeExceptionEncounter, Error: &alexa.Error{Type: "INVALID_RESPONSE"}}).Speech(); got != msgGenericError {
		t.Errorf("exception speech = %q", got)
	}

	_, err := h.dispatcher.Dispatch(context.Background(), envelope(alexa.Request{Type: "Display.ElementSelected"}))
	if !errors.Is(err, ErrUnhandled) {
		t.Errorf("unknown request error = %v, want %v", err, ErrUnhandled)
	}
}

func TestHandlerErrorBecomesApology(t *testing.T) {
	h := newHarness(t)
	h.lib.err = errors.New("server down")
	if got := h.dispatch(t, intent(alexa.IntentPlayFavorites)).Speech(); got != msgGenericError {
		t.Errorf("speech = %q, want %q", got, msgGenericError)
	}
}

func TestUnknownUser(t *testing.T) {
	h := newHarness(t)

	env := envelope(alexa.Request{Type: alexa.TypeLaunch})
	env.Context.System.User.AccessToken = "stranger"
	resp, err := h.dispatcher.Dispatch(context.Background(), env)
	if err != nil || resp.Speech() != msgUserNotFound {
		t.Errorf("launch from unknown user = %v, %v", resp, err)
	}

	env = envelope(alexa.Request{Type: alexa.TypePlaybackStarted})
	env.Context.System.User.AccessToken = "stranger"
	if _, err := h.dispatcher.Dispatch(context.Background(), env); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("event from unknown user error = %v, want %v", err, ErrUnknownUser)
	}
}

func TestRegistryOrder(t *testing.T) {
	handlers := Handlers(&Deps{})
	var names []string
	for _, h := range handlers {
		names = append(names, h.Name())
	}
	if names[0] != "Launch" || names[len(names)-1] != "Fallback" {
		t.Errorf("registry order = %v", names)
	}
}

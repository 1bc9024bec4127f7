package skill

import (
	"context"

	"github.com/wrale/alexa-media-skill/internal/alexa"
	"github.com/wrale/alexa-media-skill/internal/media"
)

func (d *Deps) event(in *Input, paused bool) media.PlaybackEvent {
	return media.PlaybackEvent{
		ItemID:     in.Request.Token,
		DeviceID:   in.DeviceID,
		PositionMs: in.Request.OffsetInMilliseconds,
		IsPaused:   paused,
	}
}

// report sends a progress update. Tracker failures do not change the answer.
func (d *Deps) report(ctx context.Context, in *Input, paused bool) {
	if err := d.Tracker.OnPlaybackProgress(ctx, in.Principal, d.event(in, paused)); err != nil {
		d.Logger.Warn("playback progress report failed", "item", in.Request.Token, "err", err)
	}
}

type playbackStartedHandler struct{ *Deps }

func (h *playbackStartedHandler) Name() string { return "PlaybackStarted" }

func (h *playbackStartedHandler) CanHandle(in *Input) bool {
	return isType(in, alexa.TypePlaybackStarted)
}

func (h *playbackStartedHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	in.Session.NowPlayingItemID = in.Request.Token
	in.Session.PositionMs = in.Request.OffsetInMilliseconds

	if err := h.Tracker.OnPlaybackStart(ctx, in.Principal, h.event(in, false)); err != nil {
		h.Logger.Warn("playback start report failed", "item", in.Request.Token, "err", err)
	}
	return alexa.Empty(), nil
}

type playbackNearlyFinishedHandler struct{ *Deps }

func (h *playbackNearlyFinishedHandler) Name() string { return "PlaybackNearlyFinished" }

func (h *playbackNearlyFinishedHandler) CanHandle(in *Input) bool {
	return isType(in, alexa.TypePlaybackNearlyFinished)
}

// Handle enqueues the successor of the finishing item so the device can buffer it
func (h *playbackNearlyFinishedHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	st := in.Session
	if in.Request.Token != "" {
		st.NowPlayingItemID = in.Request.Token
	}
	next, ok := st.Next()
	if !ok {
		return alexa.Empty(), nil
	}
	return h.play(in, alexa.BehaviorEnqueue, next, 0, in.Request.Token), nil
}

type playbackFinishedHandler struct{ *Deps }

func (h *playbackFinishedHandler) Name() string { return "PlaybackFinished" }

func (h *playbackFinishedHandler) CanHandle(in *Input) bool {
	return isType(in, alexa.TypePlaybackFinished)
}

func (h *playbackFinishedHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	h.report(ctx, in, false)
	return alexa.Empty(), nil
}

type playbackStoppedHandler struct{ *Deps }

func (h *playbackStoppedHandler) Name() string { return "PlaybackStopped" }

func (h *playbackStoppedHandler) CanHandle(in *Input) bool {
	return isType(in, alexa.TypePlaybackStopped)
}

func (h *playbackStoppedHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	if in.Request.Token == in.Session.NowPlayingItemID {
		in.Session.PositionMs = in.Request.OffsetInMilliseconds
	}
	h.report(ctx, in, true)
	return alexa.Empty(), nil
}

type playbackFailedHandler struct{ *Deps }

func (h *playbackFailedHandler) Name() string { return "PlaybackFailed" }

func (h *playbackFailedHandler) CanHandle(in *Input) bool {
	return isType(in, alexa.TypePlaybackFailed)
}

func (h *playbackFailedHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	if e := in.Request.Error; e != nil {
		h.Logger.Error("playback failed", "item", in.Request.Token, "type", e.Type, "message", e.Message)
	}
	return alexa.Tell("Something went wrong while playing your media. Please try again."), nil
}

type sessionEndedHandler struct{ *Deps }

func (h *sessionEndedHandler) Name() string { return "SessionEnded" }

func (h *sessionEndedHandler) CanHandle(in *Input) bool {
	return isType(in, alexa.TypeSessionEnded)
}

func (h *sessionEndedHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	if e := in.Request.Error; e != nil {
		h.Logger.Warn("session ended with error", "reason", in.Request.Reason, "type", e.Type, "message", e.Message)
	}
	return alexa.Empty(), nil
}

type exceptionHandler struct{ *Deps }

func (h *exceptionHandler) Name() string { return "Exception" }

func (h *exceptionHandler) CanHandle(in *Input) bool {
	return isType(in, alexa.TypeExceptionEncounter)
}

func (h *exceptionHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	kv := []any{"request", in.Request.RequestID}
	if e := in.Request.Error; e != nil {
		kv = append(kv, "type", e.Type, "message", e.Message)
	}
	h.Logger.Error("voice platform reported an exception", kv...)
	return alexa.Tell(msgGenericError), nil
}

type fallbackHandler struct{ *Deps }

func (h *fallbackHandler) Name() string { return "Fallback" }

func (h *fallbackHandler) CanHandle(in *Input) bool {
	return isIntent(in, alexa.IntentFallback)
}

func (h *fallbackHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	return alexa.Tell("I could not understand that, please try again."), nil
}

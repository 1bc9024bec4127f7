package skill

import (
	"context"

	"github.com/wrale/alexa-media-skill/internal/alexa"
)

const (
	msgWelcome        = "Welcome to Jellyfin Skill, what can I play?"
	msgWelcomeAgain   = "Please tell me, what should I play?"
	msgNothingPlaying = "There is no media currently playing."
)

type launchHandler struct{ *Deps }

func (h *launchHandler) Name() string { return "Launch" }

func (h *launchHandler) CanHandle(in *Input) bool {
	return isType(in, alexa.TypeLaunch)
}

func (h *launchHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	st := in.Session
	switch {
	case st.Playing():
		return h.play(in, alexa.BehaviorReplaceAll, st.NowPlayingItemID, st.PositionMs, ""), nil
	case len(st.Queue) > 0:
		st.SetCurrent(st.Queue[0])
		return h.play(in, alexa.BehaviorReplaceAll, st.NowPlayingItemID, 0, ""), nil
	default:
		return alexa.Ask(msgWelcome, msgWelcomeAgain), nil
	}
}

type playHandler struct{ *Deps }

func (h *playHandler) Name() string { return "Play" }

func (h *playHandler) CanHandle(in *Input) bool {
	return isType(in, alexa.TypeControllerPlay)
}

func (h *playHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	st := in.Session
	switch {
	case st.Playing():
		return h.play(in, alexa.BehaviorEnqueue, st.NowPlayingItemID, st.PositionMs, ""), nil
	case len(st.Queue) > 0:
		st.SetCurrent(st.Queue[0])
		return h.play(in, alexa.BehaviorEnqueue, st.NowPlayingItemID, 0, ""), nil
	default:
		return alexa.Empty(), nil
	}
}

// pauseHandler covers pause, stop and cancel. The current item is kept for Resume.
type pauseHandler struct{ *Deps }

func (h *pauseHandler) Name() string { return "Pause" }

func (h *pauseHandler) CanHandle(in *Input) bool {
	return isIntent(in, alexa.IntentPause, alexa.IntentStop, alexa.IntentCancel) ||
		isType(in, alexa.TypeControllerPause)
}

func (h *pauseHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	return alexa.Stop(), nil
}

type nextHandler struct{ *Deps }

func (h *nextHandler) Name() string { return "Next" }

func (h *nextHandler) CanHandle(in *Input) bool {
	return isIntent(in, alexa.IntentNext) || isType(in, alexa.TypeControllerNext)
}

func (h *nextHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	next, ok := in.Session.Next()
	if !ok {
		return alexa.Empty(), nil
	}
	in.Session.SetCurrent(next)
	return h.play(in, alexa.BehaviorReplaceAll, next, 0, ""), nil
}

type previousHandler struct{ *Deps }

func (h *previousHandler) Name() string { return "Previous" }

func (h *previousHandler) CanHandle(in *Input) bool {
	return isIntent(in, alexa.IntentPrevious) || isType(in, alexa.TypeControllerPrevious)
}

func (h *previousHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	prev, ok := in.Session.Previous()
	if !ok {
		return alexa.Empty(), nil
	}
	in.Session.SetCurrent(prev)
	return h.play(in, alexa.BehaviorReplaceAll, prev, 0, ""), nil
}

type resumeHandler struct{ *Deps }

func (h *resumeHandler) Name() string { return "Resume" }

func (h *resumeHandler) CanHandle(in *Input) bool {
	return isIntent(in, alexa.IntentResume)
}

func (h *resumeHandler) Handle(ctx context.Context, in *Input) (*alexa.ResponseEnvelope, error) {
	st := in.Session
	if !st.Playing() {
		return alexa.Tell(msgNothingPlaying), nil
	}
	return h.play(in, alexa.BehaviorReplaceAll, st.NowPlayingItemID, st.PositionMs, ""), nil
}

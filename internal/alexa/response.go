package alexa

const (
	BehaviorReplaceAll      = "REPLACE_ALL"
	BehaviorEnqueue         = "ENQUEUE"
	BehaviorReplaceEnqueued = "REPLACE_ENQUEUED"

	directivePlay = "AudioPlayer.Play"
	directiveStop = "AudioPlayer.Stop"
)

// ResponseEnvelope is the body returned to the voice platform
type ResponseEnvelope struct {
	Version  string   `json:"version"`
	Response Response `json:"response"`
}

type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	Directives       []Directive   `json:"directives,omitempty"`
	ShouldEndSession *bool         `json:"shouldEndSession,omitempty"`
}

type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Reprompt struct {
	OutputSpeech OutputSpeech `json:"outputSpeech"`
}

type Directive struct {
	Type         string     `json:"type"`
	PlayBehavior string     `json:"playBehavior,omitempty"`
	AudioItem    *AudioItem `json:"audioItem,omitempty"`
}

type AudioItem struct {
	Stream Stream `json:"stream"`
}

type Stream struct {
	Token                 string `json:"token"`
	URL                   string `json:"url"`
	OffsetInMilliseconds  int64  `json:"offsetInMilliseconds"`
	ExpectedPreviousToken string `json:"expectedPreviousToken,omitempty"`
}

func plain(text string) *OutputSpeech {
	return &OutputSpeech{Type: "PlainText", Text: text}
}

func envelope(r Response) *ResponseEnvelope {
	return &ResponseEnvelope{Version: "1.0", Response: r}
}

func endSession(b bool) *bool { return &b }

// Tell speaks text and ends the session
func Tell(text string) *ResponseEnvelope {
	return envelope(Response{OutputSpeech: plain(text), ShouldEndSession: endSession(true)})
}

// Ask speaks text and keeps the session open for an answer
func Ask(text, reprompt string) *ResponseEnvelope {
	return envelope(Response{
		OutputSpeech:     plain(text),
		Reprompt:         &Reprompt{OutputSpeech: *plain(reprompt)},
		ShouldEndSession: endSession(false),
	})
}

// Empty acknowledges a request without output
func Empty() *ResponseEnvelope {
	return envelope(Response{})
}

// Play starts or queues a stream. expectedPrevious is only sent for ENQUEUE.
func Play(behavior, url, token string, offsetMs int64, expectedPrevious string) *ResponseEnvelope {
	stream := Stream{Token: token, URL: url, OffsetInMilliseconds: offsetMs}
	if behavior == BehaviorEnqueue {
		stream.ExpectedPreviousToken = expectedPrevious
	}
	return envelope(Response{
		Directives: []Directive{{
			Type:         directivePlay,
			PlayBehavior: behavior,
			AudioItem:    &AudioItem{Stream: stream},
		}},
		ShouldEndSession: endSession(true),
	})
}

// Stop halts playback on the device
func Stop() *ResponseEnvelope {
	return envelope(Response{
		Directives:       []Directive{{Type: directiveStop}},
		ShouldEndSession: endSession(true),
	})
}

// Speech returns the spoken text of r, or ""
func (r *ResponseEnvelope) Speech() string {
	if r == nil || r.Response.OutputSpeech == nil {
		return ""
	}
	return r.Response.OutputSpeech.Text
}

// PlayStream returns the stream of the first play directive, if any
func (r *ResponseEnvelope) PlayStream() (*Stream, string, bool) {
	if r == nil {
		return nil, "", false
	}
	for _, d := range r.Response.Directives {
		if d.Type == directivePlay && d.AudioItem != nil {
			return &d.AudioItem.Stream, d.PlayBehavior, true
		}
	}
	return nil, "", false
}

// IsStop reports whether r carries a stop directive
func (r *ResponseEnvelope) IsStop() bool {
	if r == nil {
		return false
	}
	for _, d := range r.Response.Directives {
		if d.Type == directiveStop {
			return true
		}
	}
	return false
}

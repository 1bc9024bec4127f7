// Package voice serves the voice platform's skill endpoint
package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/wrale/alexa-media-skill/cmd/alexa-media-skill/handlers/common"
	"github.com/wrale/alexa-media-skill/internal/alexa"
	"github.com/wrale/alexa-media-skill/internal/skill"
)

const maxBodyBytes = 1 << 20

// Dispatcher answers one voice platform request
type Dispatcher interface {
	Dispatch(ctx context.Context, env *alexa.RequestEnvelope) (*alexa.ResponseEnvelope, error)
}

// Handler decodes skill requests and encodes the directives
type Handler struct {
	dispatcher Dispatcher
	logger     *log.Logger
}

// New creates a skill endpoint handler
func New(d Dispatcher, logger *log.Logger) *Handler {
	return &Handler{dispatcher: d, logger: logger}
}

// ServeHTTP handles POSTed request envelopes
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var env alexa.RequestEnvelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&env); err != nil {
		common.WriteError(w, http.StatusBadRequest, common.CodeInvalidRequest, "malformed request envelope")
		return
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), &env)
	switch {
	case errors.Is(err, skill.ErrUnhandled):
		common.WriteError(w, http.StatusBadRequest, common.CodeInvalidRequest, "unhandled request type "+env.Request.Type)
		return
	case err != nil:
		if common.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error("dispatching request", "type", env.Request.Type, "request", env.Request.RequestID, "err", err)
		} else {
			h.logger.Warn("rejected request", "type", env.Request.Type, "request", env.Request.RequestID, "err", err)
		}
		common.WriteErr(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, resp)
}

// Package admin serves the management endpoints for user skills and the
// shared skill.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/wrale/alexa-media-skill/cmd/alexa-media-skill/handlers/common"
	"github.com/wrale/alexa-media-skill/internal/users"
)

const maxBodyBytes = 64 << 10

// Linkages manages user skill linkages
type Linkages interface {
	Create(ctx context.Context, userID, invocationName string) (*users.User, error)
	Rename(ctx context.Context, userID, invocationName string) (*users.User, error)
	Remove(ctx context.Context, userID string) error
	Authorize(ctx context.Context, userID string) (string, error)
	Purge(ctx context.Context) error
}

// Users lists stored users
type Users interface {
	Get(ctx context.Context, id string) (*users.User, error)
	List(ctx context.Context) ([]*users.User, error)
}

// Settings applies server address changes
type Settings interface {
	UpdateServerAddress(ctx context.Context, address, certType string) error
}

// Handler serves the admin API
type Handler struct {
	token    string
	linkages Linkages
	users    Users
	settings Settings
	rebuild  func() error
	logger   *log.Logger
}

// New creates the admin API. rebuild schedules a sync of every skill.
// An empty token rejects every request.
func New(token string, linkages Linkages, store Users, settings Settings, rebuild func() error, logger *log.Logger) *Handler {
	return &Handler{
		token:    token,
		linkages: linkages,
		users:    store,
		settings: settings,
		rebuild:  rebuild,
		logger:   logger,
	}
}

// Routes returns the admin router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.authenticate)

	r.Get("/user-skills", h.listLinkages)
	r.Post("/user-skills", h.createLinkage)
	r.Get("/user-skills/{id}", h.getLinkage)
	r.Patch("/user-skills/{id}", h.renameLinkage)
	r.Delete("/user-skills/{id}", h.removeLinkage)
	r.Put("/user-skills/{id}/authorization", h.authorize)
	r.Patch("/skill-rebuild", h.rebuildSkills)
	r.Delete("/database", h.purge)
	r.Put("/server-address", h.updateServerAddress)
	return r
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			common.WriteError(w, http.StatusUnauthorized, common.CodeUnauthorized, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Linkage is the admin view of one user's skill
type Linkage struct {
	UserID         string            `json:"userId"`
	Linked         bool              `json:"linked"`
	SkillID        string            `json:"skillId,omitempty"`
	Status         users.SkillStatus `json:"status,omitempty"`
	InvocationName string            `json:"invocationName,omitempty"`
	Error          string            `json:"error,omitempty"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func linkageOf(u *users.User) Linkage {
	l := Linkage{
		UserID:    u.ID,
		Linked:    u.ServerToken != "",
		UpdatedAt: u.UpdatedAt,
	}
	if u.Skill != nil {
		l.SkillID = u.Skill.SkillID
		l.Status = u.Skill.Status
		l.InvocationName = u.Skill.InvocationName
		l.Error = u.Skill.Error
	}
	return l
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		common.WriteError(w, http.StatusBadRequest, common.CodeInvalidRequest, "malformed JSON body")
		return false
	}
	return true
}

func (h *Handler) listLinkages(w http.ResponseWriter, r *http.Request) {
	all, err := h.users.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]Linkage, 0, len(all))
	for _, u := range all {
		out = append(out, linkageOf(u))
	}
	common.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) getLinkage(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, linkageOf(u))
}

type createRequest struct {
	UserID         string `json:"userId"`
	InvocationName string `json:"invocationName"`
}

func (h *Handler) createLinkage(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.linkages.Create(r.Context(), req.UserID, req.InvocationName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, linkageOf(u))
}

type renameRequest struct {
	InvocationName string `json:"invocationName"`
}

func (h *Handler) renameLinkage(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.linkages.Rename(r.Context(), chi.URLParam(r, "id"), req.InvocationName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, linkageOf(u))
}

func (h *Handler) removeLinkage(w http.ResponseWriter, r *http.Request) {
	if err := h.linkages.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type authorizationResponse struct {
	VerificationURL string `json:"verificationUrl"`
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) {
	link, err := h.linkages.Authorize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, authorizationResponse{VerificationURL: link})
}

func (h *Handler) rebuildSkills(w http.ResponseWriter, r *http.Request) {
	if err := h.rebuild(); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	if err := h.linkages.Purge(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type serverAddressRequest struct {
	ServerAddress string `json:"serverAddress"`
	SslCertType   string `json:"sslCertType,omitempty"`
}

func (h *Handler) updateServerAddress(w http.ResponseWriter, r *http.Request) {
	var req serverAddressRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.settings.UpdateServerAddress(r.Context(), req.ServerAddress, req.SslCertType); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if common.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error("admin request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	common.WriteErr(w, err)
}

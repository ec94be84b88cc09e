package organization

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/organization/entity"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/utilities"
)

// DefaultName is given to an organization created on first access.
const DefaultName = "My organization"

// Handler serves the organization of the signed-in account.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, logger: logger}
}

func owner(w http.ResponseWriter, r *http.Request) (*session.Claims, bool) {
	c, ok := session.FromContext(r.Context())
	if !ok || c.UID == "" {
		utilities.WriteError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return nil, false
	}
	return c, true
}

// Get handles GET /organization
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := owner(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetOrCreate(r.Context(), c.UID, DefaultName)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "organization": p})
}

// Rename handles PUT /organization
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	c, ok := owner(w, r)
	if !ok {
		return
	}
	var in struct {
		Name string `json:"name"`
	}
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	p, err := h.svc.Rename(r.Context(), c.UID, in.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "organization": p})
}

// ListMembers handles GET /organization/members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	c, ok := owner(w, r)
	if !ok {
		return
	}
	members, err := h.svc.ListMembers(r.Context(), c.UID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "members": members})
}

// Grant handles POST /organization/members
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	c, ok := owner(w, r)
	if !ok {
		return
	}
	var in struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	m, err := h.svc.Grant(r.Context(), c.UID, in.Email, in.Role, c.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "member": m})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidName):
		utilities.WriteFieldError(w, "name", err.Error())
	case errors.Is(err, ErrInvalidEmail):
		utilities.WriteFieldError(w, "email", err.Error())
	case errors.Is(err, entity.ErrInvalidRole):
		utilities.WriteFieldError(w, "role", err.Error())
	case errors.Is(err, ErrDuplicateMember):
		utilities.WriteError(w, http.StatusConflict, "already_exists", err.Error())
	default:
		h.logger.Errorw("organization request failed", "err", err)
		utilities.WriteError(w, http.StatusBadGateway, "failed", "request failed")
	}
}

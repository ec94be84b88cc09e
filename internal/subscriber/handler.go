package subscriber

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/utilities"
)

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

// Subscribe handles POST /subscriptions
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	created, err := h.svc.Subscribe(r.Context(), in.Email)
	switch {
	case errors.Is(err, ErrInvalidEmail):
		utilities.WriteFieldError(w, "email", err.Error())
		return
	case err != nil:
		h.logger.Errorw("subscribe failed", "err", err)
		utilities.WriteError(w, http.StatusBadGateway, "failed", "subscription failed, please try again")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utilities.WriteJSON(w, status, map[string]any{"success": true, "created": created})
}

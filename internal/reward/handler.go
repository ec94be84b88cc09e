package reward

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/reward/entity"
	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/utilities"
)

// Handler exposes the reward catalog and the paginated list.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
	opts   []ListOption
}

// NewHandler builds the handler; opts apply to every list session it opens.
func NewHandler(svc *Service, logger *zap.SugaredLogger, opts ...ListOption) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, logger: logger, opts: append([]ListOption{WithLogger(logger)}, opts...)}
}

// rewardView adds the document id to the stored fields.
type rewardView struct {
	ID string `json:"id"`
	entity.Reward
}

func views(records []entity.Reward) []rewardView {
	out := make([]rewardView, 0, len(records))
	for _, r := range records {
		out = append(out, rewardView{ID: r.ID, Reward: r})
	}
	return out
}

// ListResponse is one rendered page of the reward list.
type ListResponse struct {
	Success    bool         `json:"success"`
	State      State        `json:"state"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
	HasMore    bool         `json:"has_more"`
	Stats      entity.Stats `json:"stats"`
	Search     string       `json:"search,omitempty"`
	Records    []rewardView `json:"records"`
}

// List handles GET /rewards?page=&q=. Page 1 is a refresh (page and
// counters together); later pages are reached by cursor replay. q filters
// the loaded page only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			utilities.WriteFieldError(w, "page", "page must be a number")
			return
		}
		page = n
	}
	search := r.URL.Query().Get("q")

	sess := NewListSession(h.svc, h.svc, h.opts...)
	var err error
	if page == 1 {
		err = sess.Refresh(r.Context())
	} else {
		var st entity.Stats
		if st, err = sess.LoadStats(r.Context()); err == nil {
			err = sess.GotoPage(r.Context(), page, st.Total)
		}
	}
	switch {
	case errors.Is(err, ErrPageOutOfRange):
		utilities.WriteError(w, http.StatusBadRequest, "page_out_of_range", err.Error())
		return
	case err != nil:
		utilities.WriteError(w, http.StatusBadGateway, "load_failed", "failed to load rewards")
		return
	}

	utilities.WriteJSON(w, http.StatusOK, ListResponse{
		Success:    true,
		State:      sess.State(),
		Page:       sess.Page(),
		PageSize:   sess.PageSize(),
		TotalPages: TotalPages(sess.Stats().Total, sess.PageSize()),
		HasMore:    sess.HasMore(),
		Stats:      sess.Stats(),
		Search:     search,
		Records:    views(sess.Visible(search)),
	})
}

// Stats handles GET /rewards/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.logger.Warnw("reward stats failed", "err", err)
		utilities.WriteError(w, http.StatusBadGateway, "load_failed", "failed to load statistics")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "stats": st})
}

// Get handles GET /rewards/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rw, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "reward": rewardView{ID: rw.ID, Reward: *rw}})
}

// Create handles POST /rewards
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in entity.Reward
	if err := utilities.DecodeJSON(r, &in); err != nil {
		h.logger.Debugw("invalid reward payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	rw, err := h.svc.Create(r.Context(), &in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "reward": rewardView{ID: rw.ID, Reward: *rw}})
}

// Replace handles PUT /rewards/{id}, the edit-mode save.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	var in entity.Reward
	if err := utilities.DecodeJSON(r, &in); err != nil {
		h.logger.Debugw("invalid reward payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	rw, err := h.svc.Replace(r.Context(), r.PathValue("id"), &in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "reward": rewardView{ID: rw.ID, Reward: *rw}})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrInvalidReward):
		utilities.WriteError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "not_found", "reward not found")
	default:
		h.logger.Errorw("reward request failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "failed", "request failed")
	}
}

package setting

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/pkg/utilities"
)

// Handler exposes the admin endpoints for reading and writing settings.
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

// Get returns a single setting by key.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	v, err := h.svc.Value(r.Context(), key)
	if errors.Is(err, ErrNotFound) {
		utilities.Fail(w, http.StatusNotFound, "setting not found")
		return
	}
	if err != nil {
		h.logger.Errorw("read setting", "key", key, "err", err)
		utilities.Fail(w, http.StatusInternalServerError, "setting read failed")
		return
	}
	utilities.OK(w, map[string]string{"key": key, "value": v})
}

type putRequest struct {
	Value    string `json:"value"`
	Category string `json:"category"`
}

// Put upserts a setting value.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.SetValue(r.Context(), key, req.Value, req.Category); err != nil {
		h.logger.Errorw("write setting", "key", key, "err", err)
		utilities.Fail(w, http.StatusInternalServerError, "setting write failed")
		return
	}
	utilities.OK(w, map[string]string{"key": key, "value": req.Value})
}

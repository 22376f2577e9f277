package stats

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/pkg/utilities"
)

// Handler serves the public site rollup.
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

// Site returns published-post count plus view and like sums.
func (h *Handler) Site(w http.ResponseWriter, r *http.Request) {
	site, err := h.svc.SiteInfo(r.Context())
	if err != nil {
		h.logger.Errorw("site rollup", "err", err)
		utilities.Fail(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	utilities.OK(w, site)
}

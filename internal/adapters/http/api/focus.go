package api

import (
	"context"
	"net/http"

	"github.com/okian/leakcoach/internal/domain/focus"
	"github.com/okian/leakcoach/pkg/logger"
)

// FocusDependencies defines the interface for focus reads.
type FocusDependencies interface {
	WeeklyFocus(ctx context.Context, userID string) (focus.Selection, error)
}

// FocusHandler handles focus requests.
type FocusHandler struct {
	deps   FocusDependencies
	logger logger.Logger
}

// NewFocusHandler creates a new focus handler.
func NewFocusHandler(deps FocusDependencies, l logger.Logger) *FocusHandler {
	return &FocusHandler{deps: deps, logger: l}
}

// HandleGetFocus handles GET /focus.
func (h *FocusHandler) HandleGetFocus(w http.ResponseWriter, r *http.Request) {
	sel, err := h.deps.WeeklyFocus(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "focus.get", err)
		return
	}
	writeJSON(w, http.StatusOK, focusResponse(sel))
}

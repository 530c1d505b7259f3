package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	service "github.com/okian/leakcoach/internal/app"
	"github.com/okian/leakcoach/internal/domain/batch"
	"github.com/okian/leakcoach/internal/domain/model"
	"github.com/okian/leakcoach/pkg/logger"
)

const (
	maxScenarioBytes = 64 << 10
	maxAnswerBytes   = 4 << 10
)

// QueueDependencies defines the queue operations the handlers call.
type QueueDependencies interface {
	BuildQueue(ctx context.Context, userID string) (batch.Summary, error)
	SubmitAnswer(ctx context.Context, userID, itemID, action string) (service.AnswerSummary, error)
	DueItems(ctx context.Context, userID string, limit int) ([]model.QueueItem, error)
	AttachScenario(ctx context.Context, userID, itemID string, payload json.RawMessage) error
}

// QueueHandler handles queue requests.
type QueueHandler struct {
	deps   QueueDependencies
	logger logger.Logger
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(deps QueueDependencies, l logger.Logger) *QueueHandler {
	return &QueueHandler{deps: deps, logger: l}
}

// HandleBuild handles POST /queue/build. A learner with queued items gets
// 200 with a skipped summary; a new batch is 201.
func (h *QueueHandler) HandleBuild(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.BuildQueue(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "queue.build", err)
		return
	}
	status := http.StatusCreated
	if sum.CreatedCount == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, buildResponse(sum))
}

// HandleDue handles GET /queue?limit=N.
func (h *QueueHandler) HandleDue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		limit = n
	}
	items, err := h.deps.DueItems(r.Context(), UserFrom(r.Context()), limit)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "queue.due", err)
		return
	}
	if items == nil {
		items = []model.QueueItem{}
	}
	writeJSON(w, http.StatusOK, dueResponse{Items: items})
}

// HandleAnswer handles POST /queue/{id}/answer with body {"action": "..."}.
func (h *QueueHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnswerBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	res, err := h.deps.SubmitAnswer(r.Context(), UserFrom(r.Context()), r.PathValue("id"), req.Action)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, "queue.answer", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleAttachScenario handles PUT /queue/{id}/scenario. The body is the
// drill content as produced by the generator.
func (h *QueueHandler) HandleAttachScenario(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxScenarioBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid_input", fmt.Errorf("%w: body is not valid JSON", ErrBadRequest))
		return
	}
	if err := h.deps.AttachScenario(r.Context(), UserFrom(r.Context()), r.PathValue("id"), body); err != nil {
		writeServiceError(r.Context(), w, h.logger, "queue.scenario", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"net/http"

	"github.com/okian/exposurerisk/internal/domain/types"
)

// ScoreHandler evaluates runs synchronously.
type ScoreHandler struct {
	deps Dependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps Dependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

// HandleScore handles POST /score requests. Nothing is stored or published.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	run, err := parseDetectionRequest(r)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	res, err := h.deps.Evaluate(r.Context(), run)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromResult(&res))
}

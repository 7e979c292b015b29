package api

import (
	"net/http"

	"github.com/okian/exposurerisk/internal/domain/scoring"
)

type configurationResponse struct {
	Version         string                        `json:"version"`
	AggregationRule string                        `json:"aggregation_rule"`
	Document        scoring.ConfigurationDocument `json:"document"`
}

// ConfigurationHandler exposes the active scoring configuration.
type ConfigurationHandler struct {
	deps Dependencies
}

// NewConfigurationHandler creates a new configuration handler.
func NewConfigurationHandler(deps Dependencies) *ConfigurationHandler {
	return &ConfigurationHandler{deps: deps}
}

// HandleGetConfiguration handles GET /configuration requests.
func (h *ConfigurationHandler) HandleGetConfiguration(w http.ResponseWriter, _ *http.Request) {
	cfg := h.deps.Current()
	writeJSON(w, http.StatusOK, configurationResponse{
		Version:         cfg.Version(),
		AggregationRule: cfg.AggregationRule(),
		Document:        cfg.Document(),
	})
}

package api

import (
	"net/http"

	"github.com/okian/openab/internal/domain/types"
)

// ExperimentHandler describes the served experiment.
type ExperimentHandler struct {
	deps   ExperimentProvider
	route  string
	cookie cookieSettings
}

// NewExperimentHandler creates a new experiment handler.
func NewExperimentHandler(deps ExperimentProvider, route string, cookie cookieSettings) *ExperimentHandler {
	return &ExperimentHandler{deps: deps, route: route, cookie: cookie}
}

// HandleGetExperiment handles GET /experiment requests.
func (h *ExperimentHandler) HandleGetExperiment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	exp := h.deps.Experiment()
	probs := exp.Probabilities()

	view := types.ExperimentView{
		Route:        h.route,
		CookieName:   h.cookie.name,
		CookieMaxAge: int(h.cookie.maxAge.Seconds()),
		Persist:      h.cookie.persist,
		MarkerPolicy: h.deps.Policy().String(),
		Variants:     make([]types.VariantView, len(exp.Variants)),
	}
	for i, v := range exp.Variants {
		view.Variants[i] = types.VariantView{ID: v.ID, Weight: v.Weight, Probability: probs[v.ID]}
	}
	writeJSON(w, http.StatusOK, view)
}

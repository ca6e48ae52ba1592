package api

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/okian/openab/internal/adapters/render"
	service "github.com/okian/openab/internal/app"
	"github.com/okian/openab/internal/domain/assign"
	"github.com/okian/openab/internal/domain/model"
	"github.com/okian/openab/pkg/logger"
	"github.com/okian/openab/pkg/metrics"
)

// Response headers exposing the decision.
const (
	HeaderVariant    = "X-AB-Variant"
	HeaderAssignment = "X-AB-Assignment"
)

type cookieSettings struct {
	name    string
	maxAge  time.Duration
	persist bool
}

// VariantHandler serves the A/B test page.
type VariantHandler struct {
	deps     Assigner
	renderer render.Renderer
	cookie   cookieSettings
	logger   logger.Logger
}

// NewVariantHandler creates a new variant handler.
func NewVariantHandler(deps Assigner, renderer render.Renderer, cookie cookieSettings, l logger.Logger) *VariantHandler {
	return &VariantHandler{deps: deps, renderer: renderer, cookie: cookie, logger: l}
}

// HandleVariant handles GET {route}: read the marker cookie, assign, persist
// when enabled, and render the chosen variant.
func (h *VariantHandler) HandleVariant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()

	marker := ""
	if c, err := r.Cookie(h.cookie.name); err == nil {
		marker = c.Value
	}

	d, err := h.deps.Assign(ctx, marker)
	if err != nil {
		switch {
		case errors.Is(err, assign.ErrInvalidConfiguration):
			writeError(w, http.StatusInternalServerError, "invalid_configuration", err)
		case errors.Is(err, service.ErrNotStarted):
			writeError(w, http.StatusServiceUnavailable, "unavailable", ErrUnavailable)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", ErrAssignment)
		}
		return
	}

	var page bytes.Buffer
	begin := time.Now()
	err = h.renderer.Render(ctx, &page, render.Data{Variant: d.Variant, Reused: d.Reused})
	metrics.RecordRenderLatency(float64(time.Since(begin).Microseconds()) / 1e3)
	if err != nil {
		if errors.Is(err, render.ErrTemplateNotFound) {
			metrics.RecordRenderError("not_found")
			writeError(w, http.StatusNotFound, "variant_not_found", err)
			return
		}
		metrics.RecordRenderError("execute")
		h.logger.Error(ctx, "variant render failed", logger.String("variant", d.Variant), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "render_failed", render.ErrRender)
		return
	}

	if h.cookie.persist && d.NeedsPersist() {
		h.persist(w, r, d)
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/html; charset=utf-8")
	hdr.Set("Cache-Control", "no-store")
	hdr.Add("Vary", "Cookie")
	hdr.Set(HeaderVariant, d.Variant)
	hdr.Set(HeaderAssignment, d.Kind())
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = page.WriteTo(w)
}

func (h *VariantHandler) persist(w http.ResponseWriter, r *http.Request, d model.Decision) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.name,
		Value:    d.Variant,
		Path:     "/",
		MaxAge:   int(h.cookie.maxAge.Seconds()),
		Expires:  time.Now().Add(h.cookie.maxAge),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	metrics.RecordMarkerPersisted()
}

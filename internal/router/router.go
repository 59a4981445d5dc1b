// Package router validates incoming discovery requests and dispatches them
// to the resolver and mutation pipeline.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kolabhq/kolab-discovery/internal/apperr"
	"github.com/kolabhq/kolab-discovery/internal/auth"
	"github.com/kolabhq/kolab-discovery/internal/core/model"
	"github.com/kolabhq/kolab-discovery/internal/core/observability"
	"github.com/kolabhq/kolab-discovery/internal/mutation"
	"github.com/kolabhq/kolab-discovery/internal/resolver"
)

type Handler struct {
	logger   *slog.Logger
	resolver *resolver.Resolver
	pipeline *mutation.Pipeline
	actors   auth.Resolver
}

func NewHandler(logger *slog.Logger, res *resolver.Resolver, pipe *mutation.Pipeline, actors auth.Resolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, resolver: res, pipeline: pipe, actors: actors}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/v1/events", h.instrument("/v1/events", h.handleFeed))
	r.Get("/v1/events/map", h.instrument("/v1/events/map", h.handleMap))
	r.Post("/v1/events", h.instrument("/v1/events", h.handleCreate))
	r.Patch("/v1/events/{id}", h.instrument("/v1/events/{id}", h.handleUpdate))
}

func (h *Handler) instrument(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilters(r)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.KindValidation, "bad filters", err))
		return
	}
	events, err := h.resolver.Feed(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) handleMap(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilters(r)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.KindValidation, "bad filters", err))
		return
	}
	bounds, err := ParseBounds(r)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.KindValidation, "bad bounds", err))
		return
	}
	markers, err := h.resolver.MapProjection(r.Context(), bounds, f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"markers": markers})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var draft model.EventDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.writeError(w, apperr.Wrap(apperr.KindValidation, "bad event payload", err))
		return
	}
	rec, err := h.pipeline.CreateEvent(r.Context(), actor, draft)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	var patch model.EventPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, apperr.Wrap(apperr.KindValidation, "bad patch payload", err))
		return
	}
	rec, err := h.pipeline.UpdateEvent(r.Context(), actor, id, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) resolveActor(r *http.Request) (auth.Actor, error) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		return auth.Actor{}, apperr.New(apperr.KindAuthRequired, "missing bearer token")
	}
	return h.actors.Resolve(r.Context(), token)
}

// ParseFilters reads discovery filters from query parameters.
func ParseFilters(r *http.Request) (model.EventFilters, error) {
	q := r.URL.Query()
	f := model.EventFilters{
		Search:    strings.TrimSpace(q.Get("search")),
		StartDate: strings.TrimSpace(q.Get("start_date")),
		EndDate:   strings.TrimSpace(q.Get("end_date")),
		Address:   strings.TrimSpace(q.Get("address")),
	}

	if raw := strings.TrimSpace(q.Get("categories")); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				f.Categories = append(f.Categories, c)
			}
		}
	}

	var err error
	if f.MinPrice, err = parseFloatParam(q.Get("min_price"), "min_price"); err != nil {
		return model.EventFilters{}, err
	}
	if f.MaxPrice, err = parseFloatParam(q.Get("max_price"), "max_price"); err != nil {
		return model.EventFilters{}, err
	}
	if f.Latitude, err = parseFloatParam(q.Get("lat"), "lat"); err != nil {
		return model.EventFilters{}, err
	}
	if f.Longitude, err = parseFloatParam(q.Get("lon"), "lon"); err != nil {
		return model.EventFilters{}, err
	}
	if f.RadiusKm, err = parseFloatParam(q.Get("radius_km"), "radius_km"); err != nil {
		return model.EventFilters{}, err
	}

	if err := f.Validate(); err != nil {
		return model.EventFilters{}, err
	}
	return f, nil
}

// ParseBounds reads the optional bounds parameter:
// bounds=<north>,<south>,<east>,<west>.
func ParseBounds(r *http.Request) (*model.MapBounds, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("bounds"))
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, errors.New("expected 4 comma-separated values: north,south,east,west")
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bounds[%d]: %w", i, err)
		}
		vals[i] = v
	}

	b := model.MapBounds{North: vals[0], South: vals[1], East: vals[2], West: vals[3]}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func parseFloatParam(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &v, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= 500 {
		h.logger.Error("request failed", "kind", kind.String(), "err", err)
	} else {
		h.logger.Debug("request rejected", "kind", kind.String(), "err", err)
	}
	h.writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"kind":    kind.String(),
			"message": err.Error(),
		},
	})
}

// Package api serves the persisted catalog as read-only JSON for the dashboard.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/camarohq/hunter/internal/model"
	"github.com/camarohq/hunter/internal/state"
)

// Handlers serves catalog reads from a state store.
type Handlers struct {
	store state.Store
}

// NewRouter builds the API router. Every request reads the store afresh so a
// concurrent run's output shows up without a restart.
func NewRouter(store state.Store, allowedOrigins []string) http.Handler {
	h := &Handlers{store: store}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HandleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/listings", h.HandleListings)
		r.Get("/listings/{identity}", h.HandleListing)
		r.Get("/meta", h.HandleMeta)
	})
	return r
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listingsResponse struct {
	UpdatedAt string          `json:"updated_at"`
	Count     int             `json:"count"`
	Listings  []model.Listing `json:"listings"`
}

// HandleListings returns the catalog in stored order, optionally filtered by
// ?new=true and ?source=<name> and capped by ?limit=<n>.
func (h *Handlers) HandleListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	onlyNew := false
	if v := q.Get("new"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "new must be a boolean")
			return
		}
		onlyNew = b
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	src := strings.TrimSpace(q.Get("source"))

	doc, ok := h.load(w, r)
	if !ok {
		return
	}

	out := make([]model.Listing, 0, len(doc.Listings))
	for _, l := range doc.Listings {
		if onlyNew && !l.IsNew {
			continue
		}
		if src != "" && !strings.EqualFold(l.Source, src) {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, listingsResponse{UpdatedAt: doc.UpdatedAt, Count: len(out), Listings: out})
}

// HandleListing returns one listing by identity.
func (h *Handlers) HandleListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identity")
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	for _, l := range doc.Listings {
		if l.Identity == id {
			writeJSON(w, http.StatusOK, l)
			return
		}
	}
	writeError(w, http.StatusNotFound, "listing not found")
}

type metaResponse struct {
	UpdatedAt string         `json:"updated_at"`
	RunID     string         `json:"run_id,omitempty"`
	Total     int            `json:"total"`
	NewCount  int            `json:"new_count"`
	Sources   map[string]int `json:"sources"`
}

// HandleMeta returns catalog metadata and per-source counts.
func (h *Handlers) HandleMeta(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	sources := make(map[string]int)
	for _, l := range doc.Listings {
		sources[l.Source]++
	}
	writeJSON(w, http.StatusOK, metaResponse{
		UpdatedAt: doc.UpdatedAt,
		RunID:     doc.RunID,
		Total:     len(doc.Listings),
		NewCount:  doc.NewCount,
		Sources:   sources,
	})
}

func (h *Handlers) load(w http.ResponseWriter, r *http.Request) (model.CatalogDocument, bool) {
	doc, err := h.store.LoadCatalog(r.Context())
	if err != nil {
		zap.L().Error("api: load catalog",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return model.CatalogDocument{}, false
	}
	return doc, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package server exposes the resolution engine over HTTP. Routes mirror the
// CLI operations one to one; all state lives in the shared resolver, so the
// handlers are thin translation layers between query parameters and chains.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/divisions-cli/internal/cache"
	"github.com/sells-group/divisions-cli/internal/config"
	"github.com/sells-group/divisions-cli/internal/division"
	"github.com/sells-group/divisions-cli/internal/geomcodec"
	"github.com/sells-group/divisions-cli/internal/resolver"
)

// Resolver is the engine surface the server needs. Satisfied by
// *resolver.Service.
type Resolver interface {
	Version(chain division.Chain) (string, error)
	Countries(ctx context.Context, chain division.Chain) ([]division.Candidate, error)
	Dependencies(ctx context.Context, chain division.Chain) ([]division.Candidate, error)
	Subtypes(ctx context.Context, chain division.Chain) ([]string, error)
	Regions(ctx context.Context, chain division.Chain) ([]division.Candidate, error)
	Places(ctx context.Context, chain division.Chain, kind division.PlaceKind) ([]division.Candidate, error)
	Search(ctx context.Context, chain division.Chain, pattern string) ([]division.Candidate, error)
	Geometry(ctx context.Context, chain division.Chain, format geomcodec.Format, opts geomcodec.Options) (*resolver.Resolution, error)
	CacheStats() cache.Stats
}

// Server is the HTTP API front end.
type Server struct {
	res    Resolver
	cfg    config.ServerConfig
	router chi.Router
}

// New builds the router with CORS, request-ID, logging, and rate-limit
// middleware.
func New(res Resolver, cfg config.ServerConfig) *Server {
	s := &Server{res: res, cfg: cfg}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(requestID)
	r.Use(logRequests)
	if cfg.RateLimit > 0 {
		r.Use(rateLimit(cfg.RateLimit, cfg.RateBurst))
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/version", s.handleVersion)
	r.Get("/api/countries", s.handleCountries)
	r.Get("/api/dependencies", s.handleDependencies)
	r.Get("/api/subtypes", s.handleSubtypes)
	r.Get("/api/regions", s.handleRegions)
	r.Get("/api/places", s.handlePlaces)
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/boundary", s.handleBoundary)
	r.Get("/api/stats", s.handleStats)

	s.router = r
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until the context is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.res.Version(division.Chain{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": v})
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	cands, err := s.res.Countries(r.Context(), division.Chain{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"countries": candidates(cands)})
}

func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	cands, err := s.res.Dependencies(r.Context(), division.Chain{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dependencies": candidates(cands)})
}

func (s *Server) handleSubtypes(w http.ResponseWriter, r *http.Request) {
	subtypes, err := s.res.Subtypes(r.Context(), division.Chain{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subtypes == nil {
		subtypes = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"subtypes": subtypes})
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	chain, ok := chainFromQuery(w, r)
	if !ok {
		return
	}

	regions, err := s.res.Regions(r.Context(), chain)
	if eris.Is(err, division.ErrNoRegions) {
		// A region-less country is a legitimate answer, not a failure.
		writeJSON(w, http.StatusOK, map[string]any{"regions": []division.Candidate{}, "has_regions": false})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": candidates(regions), "has_regions": true})
}

func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request) {
	chain, ok := chainFromQuery(w, r)
	if !ok {
		return
	}
	kind, err := division.ParsePlaceKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	cands, err := s.res.Places(r.Context(), chain, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"places": candidates(cands)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	chain, ok := chainFromQuery(w, r)
	if !ok {
		return
	}

	cands, err := s.res.Search(r.Context(), chain, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": candidates(cands)})
}

func (s *Server) handleBoundary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chain, err := division.NewChain(q.Get("country"), q.Get("region"), q.Get("place"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	format, err := geomcodec.ParseFormat(q.Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	opts := geomcodec.Options{}
	if q.Get("relative") == "true" {
		opts.Relative = true
	}
	if p := q.Get("precision"); p != "" {
		prec, err := strconv.Atoi(p)
		if err != nil || prec < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "precision must be a non-negative integer"})
			return
		}
		opts.Precision = prec
	}

	res, err := s.res.Geometry(r.Context(), chain, format, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Resolved-Id", res.Candidate.ID)
	w.Header().Set("X-Resolved-Subtype", string(res.Candidate.Subtype))
	w.Header().Set("X-Match-Count", strconv.Itoa(res.Matches))
	if res.Ambiguous {
		w.Header().Set("X-Ambiguous", "true")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data) //nolint:errcheck
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.res.CacheStats())
}

// chainFromQuery builds a chain from country/region query parameters; place
// is intentionally excluded because listing routes never take one.
func chainFromQuery(w http.ResponseWriter, r *http.Request) (division.Chain, bool) {
	q := r.URL.Query()
	chain, err := division.NewChain(q.Get("country"), q.Get("region"), "")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return division.Chain{}, false
	}
	return chain, true
}

// candidates never serializes as JSON null.
func candidates(c []division.Candidate) []division.Candidate {
	if c == nil {
		return []division.Candidate{}
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps engine errors to HTTP statuses: chain-depth violations are
// client errors, missing divisions are 404s, everything else is a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var depthErr *division.ChainDepthError
	switch {
	case errors.As(err, &depthErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": depthErr.Error()})
	case eris.Is(err, division.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no matching division"})
	default:
		zap.L().Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

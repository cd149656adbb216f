// Package apiserver is the orchestrator's HTTP surface (C5): a
// chi.Mux exposing pipeline, job, and runner management, following this
// codebase's own chi-based routing style (internal/admin/handlers) —
// one Route block per resource, context-carrying middleware for path
// parameters, and a single JSON error-encoding helper shared by every
// handler.
package apiserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/SolracHQ/rivet/internal/domain"
	"github.com/SolracHQ/rivet/internal/registry"
	"github.com/SolracHQ/rivet/internal/sandbox"
	"github.com/SolracHQ/rivet/internal/store"
	"github.com/SolracHQ/rivet/internal/validate"
)

// scheduledFilterCacheSize bounds the pipeline-tag lookup cache consulted
// while filtering the scheduled-jobs queue for a polling runner: enough
// pipelines to cover a busy queue's working set without growing
// unbounded as old pipelines accumulate in the store.
const scheduledFilterCacheSize = 512

// Server wires the in-memory store and runner registry to an HTTP
// surface.
type Server struct {
	store *store.Store
	reg   *registry.Registry
	log   *slog.Logger

	// pipelineCache memoizes pipeline lookups used to filter the
	// scheduled-jobs queue by runner tag (§4.5), avoiding a store lookup
	// per queued job on every poll from every runner.
	pipelineCache *lru.Cache[string, domain.Pipeline]
}

// New builds a Server. log may be nil, in which case slog.Default is used.
func New(st *store.Store, reg *registry.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	cache, _ := lru.New[string, domain.Pipeline](scheduledFilterCacheSize)
	return &Server{store: st, reg: reg, log: log, pipelineCache: cache}
}

// cachedPipeline returns the pipeline for id, consulting pipelineCache
// before falling back to the store and populating the cache on a miss.
func (s *Server) cachedPipeline(id string) (domain.Pipeline, error) {
	if p, ok := s.pipelineCache.Get(id); ok {
		return p, nil
	}
	p, err := s.store.GetPipeline(id)
	if err != nil {
		return domain.Pipeline{}, err
	}
	s.pipelineCache.Add(id, p)
	return p, nil
}

// Router builds the chi.Mux. Handed to http.Server.Handler by the
// orchestrator command.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/pipeline", func(r chi.Router) {
		r.Post("/create", s.handleCreatePipeline)
		r.Get("/list", s.handleListPipelines)
		r.Post("/launch", s.handleLaunchJob)
		r.Route("/{pipelineID}", func(r chi.Router) {
			r.Get("/", s.handleGetPipeline)
			r.Delete("/", s.handleDeletePipeline)
		})
	})

	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", s.handleListAllJobs)
		r.Get("/scheduled", s.handleListScheduledJobs)
		r.Get("/pipeline/{pipelineID}", s.handleListJobsByPipeline)
		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleGetJob)
			r.Put("/status", s.handleUpdateJobStatus)
			r.Post("/complete", s.handleCompleteJob)
			r.Get("/logs", s.handleGetJobLogs)
			r.Post("/logs", s.handleAppendJobLogs)
		})
		r.Post("/execute/{jobID}", s.handleClaimJob)
	})

	r.Route("/api/runners", func(r chi.Router) {
		r.Post("/register", s.handleRegisterRunner)
		r.Get("/", s.handleListRunners)
		r.Route("/{runnerID}", func(r chi.Router) {
			r.Get("/", s.handleGetRunner)
			r.Delete("/", s.handleDeleteRunner)
			r.Post("/heartbeat", s.handleHeartbeat)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// handleHealth responds with the spec's bit-exact plain-text body,
// not this server's usual {"error"/json} contract.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// --- shared response helpers ---------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to its HTTP status and emits the
// {"error": message} body the client expects, per Kind.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusFor(domain.KindOf(err))
	if status >= 500 {
		log.Error("internal error handling request", "error", err)
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindScriptSyntax, domain.KindMissingField, domain.KindBadFieldType,
		domain.KindEmptyStages, domain.KindUnknownInputType, domain.KindMissingRequiredInput,
		domain.KindBadInputType, domain.KindNotInOptions, domain.KindInvalidStateTransition:
		return http.StatusBadRequest
	case domain.KindPipelineNotFound, domain.KindJobNotFound, domain.KindRunnerNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// parseMetadata is a helper used by handlers that need a fresh
// metadata-mode parse of a pipeline's stored script (e.g. to validate a
// new script before accepting it).
func parseMetadata(script string) (*domain.Definition, error) {
	return sandbox.Parse("pipeline.star", script, sandbox.MetadataMode, nil)
}

// validateParams applies the pipeline's declared input schema to a
// launch request's parameters, in the definition's declaration order.
func (s *Server) validateParams(def *domain.Definition, params map[string]interface{}) (map[string]interface{}, error) {
	return validate.Parameters(def.Inputs, params, def.InputOrder)
}

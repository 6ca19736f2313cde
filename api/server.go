package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/finresearch/agentflow/artifact"
	"github.com/finresearch/agentflow/config"
	"github.com/finresearch/agentflow/contract"
	"github.com/finresearch/agentflow/stream"
	"github.com/finresearch/agentflow/workflow"
)

// Server bundles the ports the Control API routes against. It is thin by
// design — every handler forwards straight to Scheduler, Artifacts, or
// Bus, holding no business logic of its own.
type Server struct {
	Scheduler *workflow.Scheduler
	Artifacts *artifact.Store
	Bus       *stream.Bus
	Registry  *contract.Registry
	Redactor  config.Redactor
	Logger    *slog.Logger

	router chi.Router
}

// NewServer builds a chi router over the given ports, with a request
// logging middleware that redacts configured header/field names before
// they reach the log. The middleware wraps ResponseWriter and forwards
// http.Flusher so SSE streaming keeps working underneath it.
func NewServer(scheduler *workflow.Scheduler, artifacts *artifact.Store, bus *stream.Bus, registry *contract.Registry, redactor config.Redactor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Scheduler: scheduler, Artifacts: artifacts, Bus: bus, Registry: registry, Redactor: redactor, Logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post("/stream", s.postStream)
	r.Get("/stream/{thread_id}", s.streamThread)
	r.Get("/history/{thread_id}", s.getHistory)
	r.Get("/thread/{thread_id}", s.getThread)
	r.Get("/thread/{thread_id}/agents", s.getThreadAgents)
	r.Get("/api/artifacts/{artifact_id}", s.getArtifact)
	r.Get("/api/contracts", s.getContracts)
	r.Get("/api/contracts/{kind}/schema", s.getContractSchema)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// forward http.Flusher — SSE responses rely on Flush reaching the
// underlying connection through every layer of middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		fields := s.Redactor.Redact(map[string]string{
			"authorization": r.Header.Get("Authorization"),
			"cookie":        r.Header.Get("Cookie"),
		})

		next.ServeHTTP(rw, r)

		s.Logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"authorization", fields["authorization"],
			"cookie", fields["cookie"],
		)
	})
}

package reserved

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reservenet/core/events"
	"reservenet/core/types"
	nativecommon "reservenet/native/common"
	"reservenet/native/reserve"
)

// Server exposes the reserve consensus engine over HTTP.
type Server struct {
	engine  *reserve.Engine
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewServer wires the engine and credential set into an HTTP surface.
func NewServer(engine *reserve.Engine, creds *Credentials, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine: engine,
		auth:   NewAuthenticator(creds),
		logger: logger,
	}
}

// SetRateLimiter throttles attestation submission per principal. A nil
// limiter leaves submissions unthrottled.
func (s *Server) SetRateLimiter(limiter *RateLimiter) {
	if s == nil {
		return
	}
	s.limiter = limiter
}

// Router builds the service routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(s.auth.Middleware)

		pr.Group(func(sr chi.Router) {
			sr.Use(s.limiter.Middleware)
			sr.Post("/v1/attestations", s.handleSubmitAttestation)
			sr.Post("/v1/attestations/batch", s.handleBatchAttest)
		})
		pr.Get("/v1/reserves/{subject}", s.handleReserveBalance)
		pr.Get("/v1/reserves/{subject}/pending", s.handlePendingCount)
		pr.Get("/v1/reserves/{subject}/pending/{attester}", s.handlePendingAttestation)
		pr.Get("/v1/reserves/{subject}/attesters/{attester}", s.handleAttesterStatus)
		pr.Post("/v1/reserves/{subject}/maintenance", s.handleMaintenance)

		pr.Post("/v1/admin/force-consensus", s.handleForceConsensus)
		pr.Post("/v1/admin/emergency-set", s.handleEmergencySet)
		pr.Post("/v1/admin/reset", s.handleResetConsensus)
		pr.Put("/v1/admin/params/{name}", s.handleSetParam)
	})

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, reserve.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, reserve.ErrInvalidSubject),
		errors.Is(err, reserve.ErrBalanceOutOfRange),
		errors.Is(err, reserve.ErrMismatchedArrays),
		errors.Is(err, reserve.ErrConfigOutOfBounds):
		status = http.StatusBadRequest
	case errors.Is(err, reserve.ErrNoValidAttestations):
		status = http.StatusConflict
	case errors.Is(err, nativecommon.ErrModulePaused):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// logEmitter forwards engine events to structured logs so operators can trail
// consensus activity without a separate event pipeline.
type logEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter returns an emitter that writes every engine event as a log line.
func NewLogEmitter(logger *slog.Logger) events.Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &logEmitter{logger: logger}
}

func (l *logEmitter) Emit(evt events.Event) {
	args := []any{"type", evt.EventType()}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				args = append(args, key, value)
			}
		}
	}
	l.logger.Info("engine event", args...)
}

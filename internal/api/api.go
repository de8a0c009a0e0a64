// Package api serves the evaluation engine over HTTP.
//
// Routes:
//
//	POST /v1/evaluations   run one evaluation request ([app.Request] body)
//	POST /v1/validations   check an evaluation's evidence against a transcript
//	GET  /v1/sessions      list tracked speaker sessions
//
// Health, readiness and metrics routes are mounted alongside when the
// corresponding options are given. Every route is wrapped in
// [observe.Middleware]; the X-Session-ID header, when present, tags logs and
// spans of the request.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrWong99/speechcoach/internal/app"
	"github.com/MrWong99/speechcoach/internal/completion"
	"github.com/MrWong99/speechcoach/internal/evidence"
	"github.com/MrWong99/speechcoach/internal/health"
	"github.com/MrWong99/speechcoach/internal/observe"
	"github.com/MrWong99/speechcoach/internal/resilience"
	"github.com/MrWong99/speechcoach/pkg/types"
)

// maxBodyBytes caps request bodies. Transcripts of long speeches with
// word timings stay well below it.
const maxBodyBytes = 8 << 20

// defaultRequestTimeout bounds one evaluation, including every retry.
const defaultRequestTimeout = 3 * time.Minute

// Evaluator is the part of [app.App] the server needs.
type Evaluator interface {
	Evaluate(ctx context.Context, req app.Request) (*app.Result, error)
	Validate(eval *types.StructuredEvaluation, transcript []types.TranscriptSegment) evidence.Result
	Sessions() []app.SessionInfo
}

// ValidationRequest is the body of POST /v1/validations.
type ValidationRequest struct {
	Evaluation *types.StructuredEvaluation `json:"evaluation"`
	Transcript []types.TranscriptSegment   `json:"transcript"`
}

// ValidationResponse is the reply of POST /v1/validations.
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// errorBody is the JSON body of every error reply.
type errorBody struct {
	Error string `json:"error"`
}

// Server routes HTTP requests to an [Evaluator].
type Server struct {
	eval           Evaluator
	metrics        *observe.Metrics
	health         *health.Handler
	metricsHandler http.Handler
	requestTimeout time.Duration
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the instruments used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h on GET /metrics, typically promhttp.Handler().
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithRequestTimeout bounds each evaluation. Default: 3m.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// New returns a [Server] for eval.
func New(eval Evaluator, opts ...Option) *Server {
	s := &Server{eval: eval, requestTimeout: defaultRequestTimeout}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/evaluations", s.handleEvaluate)
	mux.HandleFunc("POST /v1/validations", s.handleValidate)
	mux.HandleFunc("GET /v1/sessions", s.handleSessions)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return observe.Middleware(s.metrics)(mux)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req app.Request
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = observe.SessionID(r.Context())
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	res, err := s.eval.Evaluate(ctx, req)
	if err != nil {
		status := statusFor(err)
		observe.Logger(ctx).Warn("evaluation failed", "status", status, "err", err)
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidationRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Evaluation == nil {
		writeError(w, http.StatusBadRequest, errors.New("api: evaluation is required"))
		return
	}

	res := s.eval.Validate(req.Evaluation, req.Transcript)
	issues := res.Issues
	if issues == nil {
		issues = []string{}
	}
	writeJSON(w, http.StatusOK, ValidationResponse{Valid: res.Valid, Issues: issues})
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eval.Sessions())
}

// statusFor maps an evaluation error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidRequest):
		return http.StatusBadRequest
	case completion.IsResponseError(err):
		return http.StatusBadGateway
	case errors.Is(err, resilience.ErrAllFailed), errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("api: decode body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

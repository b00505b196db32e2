package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"premium-rating/core/quoting"
	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
	"premium-rating/internal/logging"
)

// PlanCatalog lists loaded plan versions
type PlanCatalog interface {
	All() []*rateplan.Snapshot
	Get(id string) (*rateplan.Snapshot, bool)
	Active(pt rateplan.ProductType, asOf time.Time) []*rateplan.Snapshot
}

// Server is the API server
type Server struct {
	router   chi.Router
	service  *quoting.Service
	comparer *quoting.Comparer
	plans    PlanCatalog
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	version  string

	// RequestTimeout bounds each request; zero disables the limit
	RequestTimeout time.Duration
}

// Deps are the collaborators a server is built from. Gatherer may be nil.
type Deps struct {
	Service  *quoting.Service
	Comparer *quoting.Comparer
	Plans    PlanCatalog
	Gatherer prometheus.Gatherer
	Version  string
}

// NewServer creates a server and registers its routes
func NewServer(d Deps) *Server {
	s := &Server{
		service:        d.Service,
		comparer:       d.Comparer,
		plans:          d.Plans,
		gatherer:       d.Gatherer,
		logger:         logging.Named("api"),
		version:        d.Version,
		RequestTimeout: 30 * time.Second,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.timeout)
		r.Post("/quotes", s.handleQuote)
		r.Post("/comparisons", s.handleCompare)
		r.Get("/plans", s.handleListPlans)
		r.Get("/plans/{id}", s.handleGetPlan)
	})
	s.router = r
}

func (s *Server) timeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RequestTimeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight requests
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr), zap.String("version", s.version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	detail := ErrorDetail{
		Code:      string(rerrors.TypeOf(err)),
		Message:   err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	}
	if e, ok := rerrors.As(err); ok {
		detail.Message = e.Message
		detail.Context = e.Context
	}
	if errors.Is(err, context.DeadlineExceeded) {
		detail.Code = "TIMEOUT"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.String("request_id", detail.RequestID), zap.Error(err))
	}
	s.writeJSON(w, ErrorBody{Error: detail}, status)
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch rerrors.TypeOf(err) {
	case rerrors.TypeInput:
		return http.StatusBadRequest
	case rerrors.TypePlanNotFound:
		return http.StatusNotFound
	case rerrors.TypeAmbiguousPlan:
		return http.StatusConflict
	case rerrors.TypeMissingRateBand, rerrors.TypeRateNotFound, rerrors.TypeUnknownOption, rerrors.TypeModeNotSupported:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

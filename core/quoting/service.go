package quoting

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"premium-rating/core/determinism"
	"premium-rating/core/rateplan"
	"premium-rating/core/rating"
	rerrors "premium-rating/internal/errors"
	"premium-rating/internal/logging"
	"premium-rating/internal/metrics"
)

const tracerName = "premium-rating/core/quoting"

// PlanResolver finds the plan version a quote is rated against
type PlanResolver interface {
	Resolve(pt rateplan.ProductType, carrierID string, asOf time.Time) (*rateplan.Snapshot, error)
}

// Service rates applicants against resolved plan versions
type Service struct {
	plans       PlanResolver
	metrics     *metrics.Metrics
	logger      *zap.Logger
	tracer      trace.Tracer
	defaultMode rateplan.PaymentMode
	now         func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records quote outcomes and latency
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger replaces the component logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTracer replaces the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithDefaultMode sets the payment mode used when a selection names none
func WithDefaultMode(m rateplan.PaymentMode) Option {
	return func(s *Service) { s.defaultMode = m }
}

// WithClock sets the as-of date used when a selection names none
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a quoting service
func NewService(plans PlanResolver, opts ...Option) *Service {
	s := &Service{
		plans:       plans,
		logger:      logging.Named("quoting"),
		tracer:      otel.Tracer(tracerName),
		defaultMode: rateplan.ModeAnnual,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote resolves the plan for a selection and rates the applicant against it
func (s *Service) Quote(ctx context.Context, profile rating.ApplicantProfile, sel rating.ProductSelection) (*rating.RatingResult, *rateplan.Snapshot, error) {
	sel = s.normalize(sel)

	ctx, span := s.tracer.Start(ctx, "quoting.Quote", trace.WithAttributes(
		attribute.String("product_type", string(sel.ProductType)),
		attribute.String("carrier_id", sel.CarrierID),
		attribute.String("as_of", sel.AsOf.Format(rateplan.DateLayout)),
	))
	defer span.End()

	plan, err := s.plans.Resolve(sel.ProductType, sel.CarrierID, sel.AsOf)
	if err != nil {
		s.fail(span, sel, err)
		return nil, nil, err
	}

	result, err := s.rate(ctx, plan, profile, sel)
	if err != nil {
		return nil, plan, err
	}
	return result, plan, nil
}

// QuotePlan rates the applicant against one specific plan version
func (s *Service) QuotePlan(ctx context.Context, plan *rateplan.Snapshot, profile rating.ApplicantProfile, sel rating.ProductSelection) (*rating.RatingResult, error) {
	sel = s.normalize(sel)
	ctx, span := s.tracer.Start(ctx, "quoting.QuotePlan", trace.WithAttributes(
		attribute.String("plan_id", plan.ID()),
	))
	defer span.End()
	return s.rate(ctx, plan, profile, sel)
}

func (s *Service) rate(ctx context.Context, plan *rateplan.Snapshot, profile rating.ApplicantProfile, sel rating.ProductSelection) (*rating.RatingResult, error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("plan_id", plan.ID()),
		attribute.String("plan_version", plan.Version()),
	)

	start := time.Now()
	result, err := rating.Rate(plan, profile, sel)
	s.metrics.ObserveQuoteLatency(string(sel.ProductType), time.Since(start))
	if err != nil {
		s.fail(span, sel, err, logging.Plan(plan.ID(), plan.Version(), string(plan.ProductType()), plan.CarrierID())...)
		return nil, err
	}

	s.metrics.IncrementOutcome(string(sel.ProductType), "ok")
	s.metrics.IncrementWildcard(string(sel.ProductType), len(result.Wildcarded))
	span.SetAttributes(
		attribute.String("fingerprint", result.Fingerprint),
		attribute.String("annual_premium", determinism.FormatCurrency(result.AnnualPremium)),
	)

	fields := logging.Plan(plan.ID(), plan.Version(), string(plan.ProductType()), plan.CarrierID())
	s.logger.Debug("quote rated", append(fields,
		zap.Strings("key", result.Key),
		zap.String("annual_premium", determinism.FormatCurrency(result.AnnualPremium)),
		zap.String("mode", string(result.Mode)),
		zap.String("modal_premium", determinism.FormatCurrency(result.ModalPremium)),
		zap.String("fingerprint", result.Fingerprint),
	)...)
	return result, nil
}

func (s *Service) normalize(sel rating.ProductSelection) rating.ProductSelection {
	if sel.AsOf.IsZero() {
		sel.AsOf = s.now()
	}
	if sel.Mode == "" {
		sel.Mode = s.defaultMode
	}
	return sel
}

func (s *Service) fail(span trace.Span, sel rating.ProductSelection, err error, fields ...zap.Field) {
	code := string(rerrors.TypeOf(err))
	s.metrics.IncrementOutcome(string(sel.ProductType), code)
	span.RecordError(err)
	span.SetStatus(codes.Error, code)

	if len(fields) == 0 {
		fields = append(fields, zap.String("product_type", string(sel.ProductType)), zap.String("carrier_id", sel.CarrierID))
	}
	fields = append(fields, zap.String("code", code), zap.Error(err))
	s.logger.Warn("quote failed", fields...)
}

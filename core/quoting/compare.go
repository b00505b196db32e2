package quoting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"premium-rating/core/rateplan"
	"premium-rating/core/rating"
	rerrors "premium-rating/internal/errors"
)

// PlanLister lists every active plan version of a product on a date
type PlanLister interface {
	Active(pt rateplan.ProductType, asOf time.Time) []*rateplan.Snapshot
}

// Failure is one carrier that could not be quoted
type Failure struct {
	CarrierID string       `json:"carrier_id"`
	Source    Source       `json:"source"`
	PlanID    string       `json:"plan_id,omitempty"`
	Code      rerrors.Type `json:"code"`
	Message   string       `json:"message"`
}

// Comparison is the result of quoting one applicant across carriers.
// Quotes are in no particular order.
type Comparison struct {
	ID          string               `json:"id"`
	ProductType rateplan.ProductType `json:"product_type"`
	AsOf        string               `json:"as_of"`
	Quotes      []Quote              `json:"quotes"`
	Failures    []Failure            `json:"failures"`
}

// Comparer quotes every internal plan and carrier adapter for a product in parallel
type Comparer struct {
	service  *Service
	plans    PlanLister
	adapters AdapterSource

	// Timeout bounds each carrier adapter call
	Timeout time.Duration

	// Concurrency bounds in-flight carriers; zero means unbounded
	Concurrency int
}

// NewComparer creates a comparer. adapters may be nil.
func NewComparer(service *Service, plans PlanLister, adapters AdapterSource) *Comparer {
	return &Comparer{
		service:     service,
		plans:       plans,
		adapters:    adapters,
		Timeout:     5 * time.Second,
		Concurrency: 8,
	}
}

type outcome struct {
	quote   *Quote
	failure *Failure
}

// Compare quotes the applicant with every carrier offering the product.
// A carrier that fails is reported in Failures; only cancellation fails the whole comparison.
func (c *Comparer) Compare(ctx context.Context, profile rating.ApplicantProfile, sel rating.ProductSelection) (*Comparison, error) {
	sel = c.service.normalize(sel)
	ctx, span := c.service.tracer.Start(ctx, "quoting.Compare", trace.WithAttributes(
		attribute.String("product_type", string(sel.ProductType)),
	))
	defer span.End()

	plans := c.plans.Active(sel.ProductType, sel.AsOf)
	var adapters []CarrierAdapter
	if c.adapters != nil {
		for _, a := range c.adapters.Adapters() {
			if a.Supports(sel.ProductType) {
				adapters = append(adapters, a)
			}
		}
	}

	results := make([]outcome, len(plans)+len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}

	for i, plan := range plans {
		i, plan := i, plan // per-iteration copies (go.mod targets go 1.21)
		g.Go(func() error {
			start := time.Now()
			planSel := sel
			planSel.CarrierID = plan.CarrierID()
			r, err := c.service.QuotePlan(gctx, plan, profile, planSel)
			c.service.metrics.ObserveCarrierLatency(string(SourcePlan), time.Since(start))
			if err != nil {
				results[i].failure = newFailure(plan.CarrierID(), SourcePlan, plan.ID(), err)
				return nil
			}
			q := FromRating(r, plan, planSel)
			results[i].quote = &q
			return gctx.Err()
		})
	}

	for j, a := range adapters {
		a := a // per-iteration copy (go.mod targets go 1.21)
		i := len(plans) + j
		g.Go(func() error {
			actx, cancel := context.WithTimeout(gctx, c.Timeout)
			defer cancel()

			start := time.Now()
			carrierSel := sel
			carrierSel.CarrierID = a.CarrierID()
			ext, err := a.Quote(actx, CarrierRequest{Profile: profile, Selection: carrierSel})
			c.service.metrics.ObserveCarrierLatency(string(SourceCarrier), time.Since(start))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results[i].failure = newFailure(a.CarrierID(), SourceCarrier, "", err)
				c.service.logger.Warn("carrier quote failed", zap.String("carrier_id", a.CarrierID()), zap.Error(err))
				return nil
			}
			if ext.CarrierID == "" {
				ext.CarrierID = a.CarrierID()
			}
			if ext.ProductType == "" {
				ext.ProductType = sel.ProductType
			}
			q := FromExternal(ext)
			results[i].quote = &q
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	cmp := &Comparison{
		ID:          uuid.NewString(),
		ProductType: sel.ProductType,
		AsOf:        sel.AsOf.Format(rateplan.DateLayout),
		Quotes:      []Quote{},
		Failures:    []Failure{},
	}
	for _, r := range results {
		if r.quote != nil {
			cmp.Quotes = append(cmp.Quotes, *r.quote)
		}
		if r.failure != nil {
			cmp.Failures = append(cmp.Failures, *r.failure)
		}
	}

	span.SetAttributes(
		attribute.Int("quotes", len(cmp.Quotes)),
		attribute.Int("failures", len(cmp.Failures)),
	)
	c.service.logger.Debug("comparison complete",
		zap.String("comparison_id", cmp.ID),
		zap.String("product_type", string(sel.ProductType)),
		zap.Int("quotes", len(cmp.Quotes)),
		zap.Int("failures", len(cmp.Failures)),
	)
	return cmp, nil
}

func newFailure(carrierID string, src Source, planID string, err error) *Failure {
	return &Failure{
		CarrierID: carrierID,
		Source:    src,
		PlanID:    planID,
		Code:      rerrors.TypeOf(err),
		Message:   err.Error(),
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"premium-rating/core/quoting"
	"premium-rating/core/rateplan"
	rerrors "premium-rating/internal/errors"
)

// maxBody bounds request bodies
const maxBody = 1 << 20

// decode reads and validates a quote request body
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*QuoteRequest, bool) {
	var req QuoteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, rerrors.Input("invalid JSON: "+err.Error()))
		return nil, false
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return &req, true
}

// handleQuote handles POST /v1/quotes
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	profile, err := req.Profile()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sel, err := req.Selection()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, plan, err := s.service.Quote(r.Context(), profile, sel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	requestID := middleware.GetReqID(r.Context())
	s.logger.Debug("quote served",
		zap.String("request_id", requestID),
		zap.String("plan_id", result.PlanID),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	s.writeJSON(w, QuoteResponse{
		RequestID: requestID,
		Quote:     quoting.FromRating(result, plan, sel),
	}, http.StatusOK)
}

// handleCompare handles POST /v1/comparisons
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	profile, err := req.Profile()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sel, err := req.Selection()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cmp, err := s.comparer.Compare(r.Context(), profile, sel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	quoting.SortByPremium(cmp.Quotes)
	s.writeJSON(w, ComparisonResponse{
		RequestID:  middleware.GetReqID(r.Context()),
		Comparison: cmp,
	}, http.StatusOK)
}

// handleListPlans handles GET /v1/plans.
// With product_type and as_of only the versions in force that day are listed.
func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pt := rateplan.ProductType(q.Get("product_type"))
	carrier := q.Get("carrier_id")

	var plans []*rateplan.Snapshot
	if asOf := q.Get("as_of"); asOf != "" {
		if pt == "" {
			s.writeError(w, r, rerrors.Input("as_of requires product_type"))
			return
		}
		day, err := time.Parse(rateplan.DateLayout, asOf)
		if err != nil {
			s.writeError(w, r, rerrors.Input("as_of must be YYYY-MM-DD").WithContext("value", asOf))
			return
		}
		plans = s.plans.Active(pt, day)
	} else {
		plans = s.plans.All()
	}

	out := make([]PlanSummary, 0, len(plans))
	for _, p := range plans {
		if pt != "" && p.ProductType() != pt {
			continue
		}
		if carrier != "" && p.CarrierID() != carrier {
			continue
		}
		out = append(out, Summarize(p))
	}
	s.writeJSON(w, map[string]interface{}{
		"plans": out,
		"count": len(out),
	}, http.StatusOK)
}

// handleGetPlan handles GET /v1/plans/{id}
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	plan, ok := s.plans.Get(id)
	if !ok {
		s.writeError(w, r, rerrors.New(rerrors.TypePlanNotFound, "no plan with id "+id).WithContext("plan_id", id))
		return
	}
	s.writeJSON(w, rateplan.ToDocument(plan), http.StatusOK)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":  "healthy",
		"version": s.version,
		"plans":   len(s.plans.All()),
		"time":    time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

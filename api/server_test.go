package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-rating/adapters/carrier"
	"premium-rating/core/quoting"
	"premium-rating/core/rateplan"
	"premium-rating/internal/metrics"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ltdPlan(t *testing.T, carrierID, rate string) *rateplan.Snapshot {
	t.Helper()
	snap, err := rateplan.NewBuilder(rateplan.Plan{
		ProductType:   rateplan.DisabilityLTD,
		CarrierID:     carrierID,
		Version:       "2026.1",
		EffectiveFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:        true,
	}).
		AddEntry([]string{"40-49", "F", "*", "3A", "*"}, d(rate)).
		AddFactor("elimination_period", "90", "multiply", d("1")).
		AddFactor("elimination_period", "180", "multiply", d("0.85")).
		AddRider("cola", "Cost of living", "percent", d("10"), true, 1).
		AddFee(rateplan.RateFee{Code: "policy_fee", Type: rateplan.FeeCharge, Mode: rateplan.FeeFlat, Value: d("50"), Mandatory: true}).
		AddModal(rateplan.ModeAnnual, d("1"), d("0")).
		AddModal(rateplan.ModeMonthly, d("0.09"), d("2")).
		Build()
	require.NoError(t, err)
	return snap
}

func newTestServer(t *testing.T) (*Server, *rateplan.Repository) {
	t.Helper()
	repo := rateplan.NewRepository()
	require.NoError(t, repo.Activate(ltdPlan(t, "acme", "2.00")))
	require.NoError(t, repo.Activate(ltdPlan(t, "globex", "1.80")))

	reg := prometheus.NewRegistry()
	svc := quoting.NewService(repo,
		quoting.WithMetrics(metrics.New(reg)),
		quoting.WithClock(func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }),
	)
	adapters := carrier.NewRegistry()
	adapters.Register(&carrier.Func{
		ID:       "mutual",
		Products: []rateplan.ProductType{rateplan.DisabilityLTD},
		Fn: func(ctx context.Context, req quoting.CarrierRequest) (*quoting.ExternalQuote, error) {
			return &quoting.ExternalQuote{AnnualPremium: d("120"), Mode: rateplan.ModeAnnual}, nil
		},
	})

	return NewServer(Deps{
		Service:  svc,
		Comparer: quoting.NewComparer(svc, repo, adapters),
		Plans:    repo,
		Gatherer: reg,
		Version:  "test",
	}), repo
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

const quoteBody = `{
	"product_type": "disability_ltd",
	"carrier_id": "acme",
	"applicant": {"age": 44, "sex": "F", "state": "OR", "occupation_class": "3A"},
	"exposure_amount": "5000",
	"factors": {"elimination_period": "90"},
	"mode": "monthly"
}`

func TestQuoteEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/quotes", quoteBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp QuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "acme", resp.Quote.CarrierID)
	assert.True(t, resp.Quote.AnnualPremium.Equal(d("160")), "annual %s", resp.Quote.AnnualPremium)
	assert.True(t, resp.Quote.ModalPremium.Equal(d("16.40")), "monthly %s", resp.Quote.ModalPremium)
	assert.NotEmpty(t, resp.Quote.Lines)
	assert.NotEmpty(t, resp.Quote.Reference)
}

func TestQuoteEndpointErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{
			name:   "malformed json",
			body:   `{"product_type":`,
			status: http.StatusBadRequest,
			code:   "INPUT_ERROR",
		},
		{
			name:   "failed validation",
			body:   strings.Replace(quoteBody, `"5000"`, `"lots"`, 1),
			status: http.StatusBadRequest,
			code:   "INPUT_ERROR",
		},
		{
			name:   "unknown carrier",
			body:   strings.Replace(quoteBody, `"acme"`, `"initech"`, 1),
			status: http.StatusNotFound,
			code:   "PLAN_NOT_FOUND",
		},
		{
			name:   "two carriers and none named",
			body:   strings.Replace(quoteBody, `"carrier_id": "acme",`, ``, 1),
			status: http.StatusConflict,
			code:   "AMBIGUOUS_PLAN",
		},
		{
			name:   "unknown factor option",
			body:   strings.Replace(quoteBody, `"elimination_period": "90"`, `"elimination_period": "7"`, 1),
			status: http.StatusUnprocessableEntity,
			code:   "UNKNOWN_OPTION",
		},
		{
			name:   "age outside every band",
			body:   strings.Replace(quoteBody, `"age": 44`, `"age": 61`, 1),
			status: http.StatusUnprocessableEntity,
			code:   "MISSING_RATE_BAND",
		},
		{
			name:   "mode the plan does not offer",
			body:   strings.Replace(quoteBody, `"monthly"`, `"quarterly"`, 1),
			status: http.StatusUnprocessableEntity,
			code:   "MODE_NOT_SUPPORTED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/v1/quotes", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec).Code)
		})
	}
}

func TestValidationReportsFields(t *testing.T) {
	s, _ := newTestServer(t)
	body := strings.Replace(quoteBody, `"disability_ltd"`, `"pet_insurance"`, 1)
	rec := do(t, s, http.MethodPost, "/v1/quotes", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	detail := errorCode(t, rec)
	assert.Contains(t, detail.Message, "ProductType")
	assert.Contains(t, detail.Context, "fields")
}

func TestComparisonEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	body := strings.Replace(quoteBody, `"carrier_id": "acme",`, ``, 1)
	rec := do(t, s, http.MethodPost, "/v1/comparisons", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ID       string          `json:"id"`
		Quotes   []quoting.Quote `json:"quotes"`
		Failures []quoting.Failure
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	require.Len(t, resp.Quotes, 3)
	assert.Empty(t, resp.Failures)

	// monthly: globex 1.80 -> 149 x .09 + 2 = 15.41; acme 16.40; mutual is annual only
	assert.Equal(t, "globex", resp.Quotes[0].CarrierID)
	assert.Equal(t, "acme", resp.Quotes[1].CarrierID)
	assert.Equal(t, "mutual", resp.Quotes[2].CarrierID)
}

func TestPlanEndpoints(t *testing.T) {
	s, repo := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/plans?carrier_id=acme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Plans []PlanSummary `json:"plans"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, []string{"annual", "monthly"}, list.Plans[0].Modes)

	rec = do(t, s, http.MethodGet, "/v1/plans?product_type=disability_ltd&as_of=2025-06-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Count)

	rec = do(t, s, http.MethodGet, "/v1/plans?as_of=2026-06-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := repo.All()[0].ID()
	rec = do(t, s, http.MethodGet, "/v1/plans/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc rateplan.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	_, err := rateplan.FromDocument(&doc)
	assert.NoError(t, err, "served document should rebuild to the same hash")

	rec = do(t, s, http.MethodGet, "/v1/plans/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/v1/quotes", quoteBody)

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rating_quotes_total")
}

package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"premium-rating/core/quoting"
	"premium-rating/core/rateplan"
	"premium-rating/internal/config"
	rerrors "premium-rating/internal/errors"
)

// maxResponse bounds a carrier response body
const maxResponse = 1 << 20

// HTTP quotes through a carrier's JSON rating API
type HTTP struct {
	id       string
	url      string
	apiKey   string
	products []rateplan.ProductType
	client   *http.Client
}

// NewHTTP creates an adapter from carrier configuration
func NewHTTP(cfg config.CarrierConfig) (*HTTP, error) {
	if cfg.ID == "" || cfg.URL == "" {
		return nil, rerrors.Config("carrier needs an id and a url", nil)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a := &HTTP{
		id:     cfg.ID,
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
	for _, p := range cfg.Products {
		pt := rateplan.ProductType(p)
		if _, ok := rateplan.SchemaFor(pt); !ok {
			return nil, rerrors.Config(fmt.Sprintf("carrier %s lists unknown product %q", cfg.ID, p), nil)
		}
		a.products = append(a.products, pt)
	}
	return a, nil
}

// CarrierID implements quoting.CarrierAdapter
func (a *HTTP) CarrierID() string { return a.id }

// Supports implements quoting.CarrierAdapter; no products means all
func (a *HTTP) Supports(pt rateplan.ProductType) bool {
	if len(a.products) == 0 {
		return true
	}
	for _, p := range a.products {
		if p == pt {
			return true
		}
	}
	return false
}

// wireRequest is the body posted to a carrier
type wireRequest struct {
	ProductType    string            `json:"product_type"`
	Applicant      interface{}       `json:"applicant"`
	ExposureAmount decimal.Decimal   `json:"exposure_amount"`
	Factors        map[string]string `json:"factors,omitempty"`
	Riders         []string          `json:"riders,omitempty"`
	ExcludedRiders []string          `json:"excluded_riders,omitempty"`
	Mode           string            `json:"mode,omitempty"`
	AsOf           string            `json:"as_of,omitempty"`
}

// wireQuote is a carrier's answer
type wireQuote struct {
	Reference     string             `json:"reference"`
	Mode          string             `json:"mode"`
	AnnualPremium decimal.Decimal    `json:"annual_premium"`
	ModalPremium  decimal.Decimal    `json:"modal_premium"`
	Coverages     []quoting.Coverage `json:"coverages"`
	Riders        []string           `json:"riders"`
	Exclusions    []string           `json:"exclusions"`
}

// Quote implements quoting.CarrierAdapter
func (a *HTTP) Quote(ctx context.Context, req quoting.CarrierRequest) (*quoting.ExternalQuote, error) {
	sel := req.Selection
	body := wireRequest{
		ProductType:    string(sel.ProductType),
		Applicant:      req.Profile,
		ExposureAmount: sel.ExposureAmount,
		Factors:        sel.Factors,
		Riders:         sel.Riders,
		ExcludedRiders: sel.ExcludedRiders,
		Mode:           string(sel.Mode),
	}
	if !sel.AsOf.IsZero() {
		body.AsOf = sel.AsOf.Format(rateplan.DateLayout)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, rerrors.Internal("encode carrier request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(raw))
	if err != nil {
		return nil, rerrors.Config("invalid carrier url", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, rerrors.Wrapf(rerrors.TypeInternal, err, "carrier %s unreachable", a.id)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, rerrors.Wrapf(rerrors.TypeInternal, err, "carrier %s response", a.id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, rerrors.Newf(rerrors.TypeInternal, "carrier %s returned %d", a.id, resp.StatusCode).
			WithContext("status", resp.StatusCode).
			WithContext("body", truncate(string(payload), 256))
	}

	var q wireQuote
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, rerrors.Wrapf(rerrors.TypeInternal, err, "carrier %s sent an unreadable quote", a.id)
	}
	if q.AnnualPremium.IsNegative() || q.ModalPremium.IsNegative() {
		return nil, rerrors.Newf(rerrors.TypeInternal, "carrier %s quoted a negative premium", a.id)
	}
	mode := rateplan.PaymentMode(q.Mode)
	if mode == "" {
		mode = sel.Mode
	}
	return &quoting.ExternalQuote{
		CarrierID:     a.id,
		ProductType:   sel.ProductType,
		Reference:     q.Reference,
		Mode:          mode,
		AnnualPremium: q.AnnualPremium,
		ModalPremium:  q.ModalPremium,
		Coverages:     q.Coverages,
		Riders:        q.Riders,
		Exclusions:    q.Exclusions,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// FromConfig registers an HTTP adapter for every configured carrier
func FromConfig(carriers []config.CarrierConfig) (*Registry, error) {
	reg := NewRegistry()
	for _, c := range carriers {
		a, err := NewHTTP(c)
		if err != nil {
			return nil, err
		}
		reg.Register(a)
	}
	return reg, nil
}

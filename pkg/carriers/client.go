package carriers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/types"
)

const (
	errorBodyReadLimit  int64 = 1024
	defaultCallTimeout        = 10 * time.Second
)

var (
	errCarrierNameRequired = errors.New("carrier name is required")
	errBaseURLRequired     = errors.New("carrier base url is required")
	errAPIKeyRequired      = errors.New("carrier api key is required")
)

// Client talks to one shipping carrier account. Both configured carriers
// speak the same JSON rate/label surface, so the store runs two instances of
// this client rather than two implementations.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	carrier    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a carrier client for one account.
func NewClient(carrier, baseURL, apiKey string, opts ...Option) (*Client, error) {
	trimmedCarrier := strings.TrimSpace(carrier)
	if trimmedCarrier == "" {
		return nil, errCarrierNameRequired
	}
	trimmedURL := strings.TrimSpace(baseURL)
	if trimmedURL == "" {
		return nil, errBaseURLRequired
	}
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		carrier:    trimmedCarrier,
		baseURL:    trimmedURL,
		apiKey:     trimmedKey,
		httpClient: &http.Client{Timeout: defaultCallTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultCallTimeout}
	}

	return client, nil
}

// Name returns the carrier display name used in quotes and logs.
func (c *Client) Name() string {
	if c == nil {
		return ""
	}
	return c.carrier
}

// RateRequest describes one shipment to price.
type RateRequest struct {
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
	WeightGrams   int    `json:"weight_grams"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

// Rate is one priced service option returned by the carrier.
type Rate struct {
	Carrier       string
	Service       string
	Code          string
	PriceCents    int64
	EstimatedDays int
}

// Rates asks the carrier to price the shipment.
func (c *Client) Rates(ctx context.Context, req RateRequest) ([]Rate, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}
	if strings.TrimSpace(req.PostalCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "postal code is required")
	}
	if req.WeightGrams <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight must be positive")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal rate request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("rates"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build rate request")
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute rate request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp, "rate request failed")
	}

	var apiResp struct {
		Rates []struct {
			Service       string `json:"service"`
			Code          string `json:"code"`
			PriceCents    int64  `json:"price_cents"`
			EstimatedDays int    `json:"estimated_days"`
		} `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode rate response")
	}

	rates := make([]Rate, 0, len(apiResp.Rates))
	for _, r := range apiResp.Rates {
		if r.PriceCents <= 0 {
			continue
		}
		rates = append(rates, Rate{
			Carrier:       c.carrier,
			Service:       r.Service,
			Code:          r.Code,
			PriceCents:    r.PriceCents,
			EstimatedDays: r.EstimatedDays,
		})
	}

	return rates, nil
}

// LabelRequest describes the shipment the store wants a label for.
type LabelRequest struct {
	OrderNumber int64         `json:"order_number"`
	ServiceCode string        `json:"service_code"`
	WeightGrams int           `json:"weight_grams"`
	Destination types.Address `json:"destination"`
}

// Label is the carrier's purchased label.
type Label struct {
	TrackingNumber string
	LabelURL       string
}

// PurchaseLabel buys a shipping label for the shipment.
func (c *Client) PurchaseLabel(ctx context.Context, req LabelRequest) (*Label, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}
	if strings.TrimSpace(req.ServiceCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "service code is required")
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid destination")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal label request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("labels"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build label request")
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute label request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.statusError(resp, "label request failed")
	}

	var apiResp struct {
		TrackingNumber string `json:"tracking_number"`
		LabelURL       string `json:"label_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode label response")
	}
	if apiResp.TrackingNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier returned no tracking number")
	}

	return &Label{
		TrackingNumber: apiResp.TrackingNumber,
		LabelURL:       apiResp.LabelURL,
	}, nil
}

// TrackingStatus is the carrier's view of a shipment.
type TrackingStatus struct {
	TrackingNumber string
	Status         string
	EstimatedDays  int
}

// Track fetches the current tracking status for a shipment.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*TrackingStatus, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}
	trimmed := strings.TrimSpace(trackingNumber)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
	}

	endpoint := fmt.Sprintf("%s/tracking/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(trimmed))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build tracking request")
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute tracking request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp, "tracking request failed")
	}

	var apiResp struct {
		TrackingNumber string `json:"tracking_number"`
		Status         string `json:"status"`
		EstimatedDays  int    `json:"estimated_days"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode tracking response")
	}

	return &TrackingStatus{
		TrackingNumber: apiResp.TrackingNumber,
		Status:         apiResp.Status,
		EstimatedDays:  apiResp.EstimatedDays,
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
}

func (c *Client) statusError(resp *http.Response, msg string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	cause := fmt.Errorf("%s: status %d: %s", c.carrier, resp.StatusCode, strings.TrimSpace(string(body)))
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, msg)
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/internal/cart"
	"github.com/mieldesol/modhu-backend/internal/shipping"
	"github.com/mieldesol/modhu-backend/pkg/db/models"
)

type stubShippingService struct {
	quotesFn func(ctx context.Context, req shipping.QuoteRequest) ([]shipping.Quote, error)
}

func (s stubShippingService) Quotes(ctx context.Context, req shipping.QuoteRequest) ([]shipping.Quote, error) {
	if s.quotesFn != nil {
		return s.quotesFn(ctx, req)
	}
	return nil, nil
}

type stubWeigher struct {
	products []models.Product
	err      error
}

func (s stubWeigher) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return s.products, s.err
}

func TestShippingQuotesComputesParcelServerSide(t *testing.T) {
	heavy := uuid.New()
	light := uuid.New()

	carts := stubCartService{
		getFn: func(_ context.Context, sessionID string) (*cart.Cart, error) {
			return &cart.Cart{
				SessionID: sessionID,
				Items: []cart.Item{
					{ProductID: heavy, Quantity: 2, UnitPriceCents: 1850},
					{ProductID: light, Quantity: 1, UnitPriceCents: 950},
				},
			}, nil
		},
	}
	weigher := stubWeigher{products: []models.Product{
		{ID: heavy, WeightGrams: 500},
		{ID: light, WeightGrams: 250},
	}}

	var captured shipping.QuoteRequest
	quotes := stubShippingService{
		quotesFn: func(_ context.Context, req shipping.QuoteRequest) ([]shipping.Quote, error) {
			captured = req
			return []shipping.Quote{
				{Carrier: "correos", Service: "Standard", Code: "std", PriceCents: 700, EstimatedDays: 3},
			}, nil
		},
	}

	handler := ShippingQuotes(quotes, carts, weigher, nil)
	req := sessionRequest(http.MethodPost, "/api/v1/shipping/quotes", `{"postal_code":"28001","country":"ES"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.WeightGrams != 2*500+250 {
		t.Fatalf("expected weight 1250 got %d", captured.WeightGrams)
	}
	if captured.SubtotalCents != 2*1850+950 {
		t.Fatalf("expected subtotal 4650 got %d", captured.SubtotalCents)
	}
	if captured.PostalCode != "28001" || captured.Country != "ES" {
		t.Fatalf("unexpected destination %+v", captured)
	}

	var envelope struct {
		Data struct {
			Quotes []shipping.Quote `json:"quotes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Quotes) != 1 || envelope.Data.Quotes[0].Code != "std" {
		t.Fatalf("unexpected quotes %+v", envelope.Data.Quotes)
	}
}

func TestShippingQuotesFallsBackToDefaultWeight(t *testing.T) {
	productID := uuid.New()
	carts := stubCartService{
		getFn: func(_ context.Context, sessionID string) (*cart.Cart, error) {
			return &cart.Cart{
				SessionID: sessionID,
				Items:     []cart.Item{{ProductID: productID, Quantity: 1, UnitPriceCents: 1200}},
			}, nil
		},
	}
	weigher := stubWeigher{products: []models.Product{{ID: productID, WeightGrams: 0}}}

	var captured shipping.QuoteRequest
	quotes := stubShippingService{
		quotesFn: func(_ context.Context, req shipping.QuoteRequest) ([]shipping.Quote, error) {
			captured = req
			return nil, nil
		},
	}

	handler := ShippingQuotes(quotes, carts, weigher, nil)
	req := sessionRequest(http.MethodPost, "/api/v1/shipping/quotes", `{"postal_code":"28001"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.WeightGrams != parcelFallbackWeightGrams {
		t.Fatalf("expected fallback weight %d got %d", parcelFallbackWeightGrams, captured.WeightGrams)
	}
}

func TestShippingQuotesRejectsEmptyCart(t *testing.T) {
	carts := stubCartService{
		getFn: func(_ context.Context, sessionID string) (*cart.Cart, error) {
			return &cart.Cart{SessionID: sessionID}, nil
		},
	}

	handler := ShippingQuotes(stubShippingService{}, carts, stubWeigher{}, nil)
	req := sessionRequest(http.MethodPost, "/api/v1/shipping/quotes", `{"postal_code":"28001"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

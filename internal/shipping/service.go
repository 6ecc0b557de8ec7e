package shipping

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mieldesol/modhu-backend/pkg/carriers"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
)

const defaultQuoteTimeout = 5 * time.Second

// RateProvider is the slice of the carrier client the quote fan-out needs.
type RateProvider interface {
	Name() string
	Rates(ctx context.Context, req carriers.RateRequest) ([]carriers.Rate, error)
}

// QuoteRequest describes the shipment the storefront wants priced.
type QuoteRequest struct {
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
	WeightGrams   int    `json:"weight_grams"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

// Quote is one shipping option offered at checkout. Fallback marks the
// static rates used when no carrier answered.
type Quote struct {
	Carrier       string `json:"carrier"`
	Service       string `json:"service"`
	Code          string `json:"code"`
	PriceCents    int64  `json:"price_cents"`
	EstimatedDays int    `json:"estimated_days"`
	Fallback      bool   `json:"fallback,omitempty"`
}

// Config tunes the quote fan-out and the static fallback table.
type Config struct {
	QuoteTimeout          time.Duration
	FallbackStandardCents int64
	FallbackExpressCents  int64
	// FreeShippingMinCents enables a free standard option at or above the
	// threshold. Zero disables it.
	FreeShippingMinCents int64
}

// Service prices shipments for the storefront.
type Service interface {
	Quotes(ctx context.Context, req QuoteRequest) ([]Quote, error)
}

type service struct {
	providers []RateProvider
	cfg       Config
	log       *logger.Logger
}

// NewService constructs the shipping service. An empty provider list is
// allowed; every quote then comes from the fallback table.
func NewService(providers []RateProvider, cfg Config, log *logger.Logger) (Service, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = defaultQuoteTimeout
	}
	kept := make([]RateProvider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &service{providers: kept, cfg: cfg, log: log}, nil
}

// Quotes asks every configured carrier in parallel and merges the answers.
// Carrier failures are logged and skipped; when nothing usable comes back
// the static fallback rates keep checkout alive.
func (s *service) Quotes(ctx context.Context, req QuoteRequest) ([]Quote, error) {
	if strings.TrimSpace(req.PostalCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "postal_code is required")
	}
	if req.WeightGrams <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight_grams must be positive")
	}

	rateReq := carriers.RateRequest{
		PostalCode:    strings.TrimSpace(req.PostalCode),
		Country:       strings.ToUpper(strings.TrimSpace(req.Country)),
		WeightGrams:   req.WeightGrams,
		SubtotalCents: req.SubtotalCents,
	}

	results := make([][]Quote, len(s.providers))
	g, groupCtx := errgroup.WithContext(ctx)
	for i, provider := range s.providers {
		i, provider := i, provider
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(groupCtx, s.cfg.QuoteTimeout)
			defer cancel()

			rates, err := provider.Rates(callCtx, rateReq)
			if err != nil {
				warnCtx := s.log.WithFields(ctx, map[string]any{
					"carrier": provider.Name(),
					"error":   err.Error(),
				})
				s.log.Warn(warnCtx, "carrier quote failed")
				return nil
			}
			quotes := make([]Quote, 0, len(rates))
			for _, rate := range rates {
				if rate.PriceCents < 0 {
					continue
				}
				quotes = append(quotes, Quote{
					Carrier:       rate.Carrier,
					Service:       rate.Service,
					Code:          rate.Code,
					PriceCents:    rate.PriceCents,
					EstimatedDays: rate.EstimatedDays,
				})
			}
			results[i] = quotes
			return nil
		})
	}
	// Workers swallow their own errors, so Wait only orders the writes.
	_ = g.Wait()

	var quotes []Quote
	for _, result := range results {
		quotes = append(quotes, result...)
	}
	if len(quotes) == 0 {
		quotes = s.fallbackQuotes()
	}
	if s.cfg.FreeShippingMinCents > 0 && req.SubtotalCents >= s.cfg.FreeShippingMinCents {
		quotes = append(quotes, Quote{
			Carrier:       "Miel de Sol",
			Service:       "Free Standard Shipping",
			Code:          "free_standard",
			PriceCents:    0,
			EstimatedDays: 7,
		})
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		if quotes[i].PriceCents != quotes[j].PriceCents {
			return quotes[i].PriceCents < quotes[j].PriceCents
		}
		if quotes[i].EstimatedDays != quotes[j].EstimatedDays {
			return quotes[i].EstimatedDays < quotes[j].EstimatedDays
		}
		return quotes[i].Carrier+quotes[i].Service < quotes[j].Carrier+quotes[j].Service
	})
	return quotes, nil
}

func (s *service) fallbackQuotes() []Quote {
	return []Quote{
		{
			Carrier:       "Miel de Sol",
			Service:       "Standard Shipping",
			Code:          "fallback_standard",
			PriceCents:    s.cfg.FallbackStandardCents,
			EstimatedDays: 7,
			Fallback:      true,
		},
		{
			Carrier:       "Miel de Sol",
			Service:       "Express Shipping",
			Code:          "fallback_express",
			PriceCents:    s.cfg.FallbackExpressCents,
			EstimatedDays: 2,
			Fallback:      true,
		},
	}
}

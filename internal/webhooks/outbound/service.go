package outboundwebhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/mieldesol/modhu-backend/pkg/db/models"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
	"github.com/mieldesol/modhu-backend/pkg/logger"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

// SubscriptionDTO is the admin API shape of a webhook subscription. The
// secret is included so integrators can configure their receivers; the
// admin surface is already privileged.
type SubscriptionDTO struct {
	ID           uuid.UUID  `json:"id"`
	URL          string     `json:"url"`
	Description  *string    `json:"description,omitempty"`
	Secret       string     `json:"secret"`
	EventTypes   []string   `json:"event_types"`
	IsActive     bool       `json:"is_active"`
	FailureCount int        `json:"failure_count"`
	DisabledAt   *time.Time `json:"disabled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DeliveryDTO is one row of the delivery log.
type DeliveryDTO struct {
	ID             uuid.UUID       `json:"id"`
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	EventID        uuid.UUID       `json:"event_id"`
	EventType      string          `json:"event_type"`
	Status         string          `json:"status"`
	AttemptCount   int             `json:"attempt_count"`
	ResponseStatus *int            `json:"response_status,omitempty"`
	LastError      *string         `json:"last_error,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Payload        json.RawMessage `json:"payload"`
}

// DeliveryPage is one cursor page of DeliveryDTOs.
type DeliveryPage struct {
	Deliveries []DeliveryDTO `json:"deliveries"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type CreateSubscriptionInput struct {
	URL         string
	Description *string
	EventTypes  []string
	// Secret is optional; a random one is generated when blank.
	Secret string
}

// UpdateSubscriptionInput applies partial changes. Nil fields stay as they
// are; an empty EventTypes slice subscribes to every event.
type UpdateSubscriptionInput struct {
	URL         *string
	Description *string
	EventTypes  []string
	IsActive    *bool
}

type deliverySender interface {
	Attempt(ctx context.Context, sub *models.WebhookSubscription, delivery *models.WebhookDelivery) error
}

// Service is the admin surface for outbound webhook endpoints.
type Service interface {
	Create(ctx context.Context, input CreateSubscriptionInput) (*SubscriptionDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateSubscriptionInput) (*SubscriptionDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*SubscriptionDTO, error)
	List(ctx context.Context) ([]SubscriptionDTO, error)
	ListDeliveries(ctx context.Context, subscriptionID uuid.UUID, page pagination.Params) (*DeliveryPage, error)
	Redeliver(ctx context.Context, deliveryID uuid.UUID) (*DeliveryDTO, error)
}

type service struct {
	repo   *Repository
	sender deliverySender
	logg   *logger.Logger
}

func NewService(repo *Repository, sender deliverySender, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if sender == nil {
		return nil, fmt.Errorf("delivery sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, sender: sender, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateSubscriptionInput) (*SubscriptionDTO, error) {
	endpoint, err := validateEndpointURL(input.URL)
	if err != nil {
		return nil, err
	}
	eventTypes, err := validateEventTypes(input.EventTypes)
	if err != nil {
		return nil, err
	}

	secret := strings.TrimSpace(input.Secret)
	if secret == "" {
		secret, err = generateSecret()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "could not generate signing secret")
		}
	}

	sub := &models.WebhookSubscription{
		URL:         endpoint,
		Description: input.Description,
		Secret:      secret,
		EventTypes:  pq.StringArray(eventTypes),
		IsActive:    true,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID.String(),
		"url":             sub.URL,
	})
	s.logg.Info(logCtx, "webhook subscription created")
	return newSubscriptionDTO(sub), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateSubscriptionInput) (*SubscriptionDTO, error) {
	sub, err := s.loadSubscription(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.URL != nil {
		endpoint, err := validateEndpointURL(*input.URL)
		if err != nil {
			return nil, err
		}
		sub.URL = endpoint
	}
	if input.Description != nil {
		sub.Description = input.Description
	}
	if input.EventTypes != nil {
		eventTypes, err := validateEventTypes(input.EventTypes)
		if err != nil {
			return nil, err
		}
		sub.EventTypes = pq.StringArray(eventTypes)
	}
	if input.IsActive != nil {
		if *input.IsActive && !sub.IsActive {
			// Re-enabling forgives the failure streak.
			sub.FailureCount = 0
			sub.DisabledAt = nil
		}
		if !*input.IsActive && sub.IsActive {
			now := time.Now().UTC()
			sub.DisabledAt = &now
		}
		sub.IsActive = *input.IsActive
	}

	if err := s.repo.SaveSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return newSubscriptionDTO(sub), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteSubscription(ctx, id)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.loadSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	return newSubscriptionDTO(sub), nil
}

func (s *service) List(ctx context.Context) ([]SubscriptionDTO, error) {
	subs, err := s.repo.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SubscriptionDTO, 0, len(subs))
	for i := range subs {
		out = append(out, *newSubscriptionDTO(&subs[i]))
	}
	return out, nil
}

func (s *service) ListDeliveries(ctx context.Context, subscriptionID uuid.UUID, page pagination.Params) (*DeliveryPage, error) {
	if _, err := s.loadSubscription(ctx, subscriptionID); err != nil {
		return nil, err
	}
	result, err := s.repo.ListDeliveries(ctx, subscriptionID, page)
	if err != nil {
		return nil, err
	}
	deliveries := make([]DeliveryDTO, 0, len(result.Deliveries))
	for i := range result.Deliveries {
		deliveries = append(deliveries, *newDeliveryDTO(&result.Deliveries[i]))
	}
	return &DeliveryPage{Deliveries: deliveries, NextCursor: result.NextCursor}, nil
}

// Redeliver re-posts a logged delivery. It works on disabled subscriptions
// too: poking a broken endpoint is exactly how an admin verifies the
// integrator's fix before re-enabling it.
func (s *service) Redeliver(ctx context.Context, deliveryID uuid.UUID) (*DeliveryDTO, error) {
	delivery, err := s.repo.FindDelivery(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "webhook delivery not found")
		}
		return nil, err
	}
	sub, err := s.loadSubscription(ctx, delivery.SubscriptionID)
	if err != nil {
		return nil, err
	}

	if err := s.sender.Attempt(ctx, sub, delivery); err != nil {
		return nil, err
	}

	updated, err := s.repo.FindDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	return newDeliveryDTO(updated), nil
}

func (s *service) loadSubscription(ctx context.Context, id uuid.UUID) (*models.WebhookSubscription, error) {
	sub, err := s.repo.FindSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "webhook subscription not found")
		}
		return nil, err
	}
	return sub, nil
}

func newSubscriptionDTO(sub *models.WebhookSubscription) *SubscriptionDTO {
	return &SubscriptionDTO{
		ID:           sub.ID,
		URL:          sub.URL,
		Description:  sub.Description,
		Secret:       sub.Secret,
		EventTypes:   append([]string{}, sub.EventTypes...),
		IsActive:     sub.IsActive,
		FailureCount: sub.FailureCount,
		DisabledAt:   sub.DisabledAt,
		CreatedAt:    sub.CreatedAt,
	}
}

func newDeliveryDTO(delivery *models.WebhookDelivery) *DeliveryDTO {
	return &DeliveryDTO{
		ID:             delivery.ID,
		SubscriptionID: delivery.SubscriptionID,
		EventID:        delivery.EventID,
		EventType:      string(delivery.EventType),
		Status:         string(delivery.Status),
		AttemptCount:   delivery.AttemptCount,
		ResponseStatus: delivery.ResponseStatus,
		LastError:      delivery.LastError,
		DeliveredAt:    delivery.DeliveredAt,
		CreatedAt:      delivery.CreatedAt,
		Payload:        delivery.Payload,
	}
}

func validateEndpointURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "url must be a valid http(s) endpoint")
	}
	return trimmed, nil
}

func validateEventTypes(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, value := range raw {
		eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(value))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown event type").
				WithDetails(map[string]any{"event_type": value})
		}
		out = append(out, string(eventType))
	}
	return out, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}

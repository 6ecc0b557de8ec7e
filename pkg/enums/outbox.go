package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder               OutboxAggregateType = "order"
	AggregatePromotion           OutboxAggregateType = "promotion"
	AggregateInventory           OutboxAggregateType = "inventory"
	AggregateCustomer            OutboxAggregateType = "customer"
	AggregateWebhookSubscription OutboxAggregateType = "webhook_subscription"
)

// OutboxEventType maps to the event_type enum in Postgres. The dotted form is
// what webhook subscribers filter on.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order.created"
	EventOrderPaid          OutboxEventType = "order.paid"
	EventOrderPaymentFailed OutboxEventType = "order.payment_failed"
	EventOrderFulfilled     OutboxEventType = "order.fulfilled"
	EventOrderCancelled     OutboxEventType = "order.cancelled"
	EventPromotionApplied   OutboxEventType = "promotion.applied"
	EventInventoryLowStock  OutboxEventType = "inventory.low_stock"
	EventCustomerRegistered OutboxEventType = "customer.registered"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderPaymentFailed,
	EventOrderFulfilled,
	EventOrderCancelled,
	EventPromotionApplied,
	EventInventoryLowStock,
	EventCustomerRegistered,
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// ValidOutboxEventTypes returns the full catalog subscribers may register for.
func ValidOutboxEventTypes() []OutboxEventType {
	out := make([]OutboxEventType, len(validOutboxEventTypes))
	copy(out, validOutboxEventTypes)
	return out
}

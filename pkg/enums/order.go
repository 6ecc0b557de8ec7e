package enums

import "fmt"

// OrderStatus tracks the lifecycle of a storefront order.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusFulfilled     OrderStatus = "fulfilled"
	OrderStatusCancelled     OrderStatus = "cancelled"
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusFulfilled,
	OrderStatusCancelled,
	OrderStatusPaymentFailed,
}

// Terminal statuses accept no further transitions.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:       {OrderStatusPaid, OrderStatusCancelled, OrderStatusPaymentFailed},
	OrderStatusPaid:          {OrderStatusFulfilled, OrderStatusCancelled},
	OrderStatusPaymentFailed: {OrderStatusCancelled},
	OrderStatusFulfilled:     {},
	OrderStatusCancelled:     {},
}

// CanTransitionTo reports whether the status may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderStatusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

package enums

// WebhookDeliveryStatus tracks one delivery attempt row. The dispatcher is
// the only writer; rows go out pending and settle as delivered or failed.
type WebhookDeliveryStatus string

const (
	WebhookDeliveryStatusPending   WebhookDeliveryStatus = "pending"
	WebhookDeliveryStatusDelivered WebhookDeliveryStatus = "delivered"
	WebhookDeliveryStatusFailed    WebhookDeliveryStatus = "failed"
)

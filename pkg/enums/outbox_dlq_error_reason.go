package enums

// OutboxDLQErrorReason says why the relay gave up on an event. The worker is
// the only writer, so there is nothing to parse or validate.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

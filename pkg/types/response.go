package types

// SuccessEnvelope wraps every 2xx JSON body: {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body. Code is one of the stable pkg/errors
// codes; Details carries field-level validation output when the code
// allows details through.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx JSON body: {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/mieldesol/modhu-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://api.sendgrid.com/v3"
	errorBodyReadLimit   int64 = 1024
	defaultSendTimeout         = 10 * time.Second
)

var errAPIKeyRequired = errors.New("sendgrid api key is required")

// Client wraps the SendGrid v3 mail send API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
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

// WithBaseURL overrides the SendGrid base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the SendGrid client given an API key and default sender.
func NewClient(apiKey, defaultFrom string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		from:       strings.TrimSpace(defaultFrom),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultSendTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultSendTimeout}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// Message is one transactional email.
type Message struct {
	To       string
	ToName   string
	From     string
	Subject  string
	HTMLBody string
	TextBody string
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailSendRequest struct {
	Personalizations []struct {
		To []emailAddress `json:"to"`
	} `json:"personalizations"`
	From    emailAddress  `json:"from"`
	Subject string        `json:"subject"`
	Content []mailContent `json:"content"`
}

// Send posts one message to the mail send API. A 202 means SendGrid accepted
// it; 429 and 5xx surface as retryable dependency errors.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "sendgrid client not configured")
	}
	if strings.TrimSpace(msg.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient email is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subject is required")
	}
	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = c.from
	}
	if from == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sender email is required")
	}

	body := mailSendRequest{
		From:    emailAddress{Email: from},
		Subject: msg.Subject,
	}
	body.Personalizations = append(body.Personalizations, struct {
		To []emailAddress `json:"to"`
	}{To: []emailAddress{{Email: msg.To, Name: msg.ToName}}})
	if msg.TextBody != "" {
		body.Content = append(body.Content, mailContent{Type: "text/plain", Value: msg.TextBody})
	}
	if msg.HTMLBody != "" {
		body.Content = append(body.Content, mailContent{Type: "text/html", Value: msg.HTMLBody})
	}
	if len(body.Content) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal mail send request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("mail/send"), bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build mail send request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute mail send request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusAccepted {
		return nil
	}

	msgBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msgBody)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "mail send rejected")
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "mail send rejected")
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

package openai

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
	defaultBaseURL            = "https://api.openai.com/v1"
	defaultImageModel         = "gpt-image-1"
	defaultImageSize          = "1024x1024"
	errorBodyReadLimit  int64 = 2048
	defaultImageTimeout       = 60 * time.Second
)

var errAPIKeyRequired = errors.New("openai api key is required")

// Client wraps the OpenAI image generation API used for product imagery.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
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

// WithBaseURL overrides the OpenAI base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithModel overrides the image model.
func WithModel(model string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(model)
		if trimmed != "" {
			c.model = trimmed
		}
	}
}

// NewClient builds the OpenAI client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		model:      defaultImageModel,
		httpClient: &http.Client{Timeout: defaultImageTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultImageTimeout}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// GeneratedImage is one image returned by the API.
type GeneratedImage struct {
	URL string
}

// GenerateImage renders one image for the prompt and returns its URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "openai client not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prompt is required")
	}

	body := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		N      int    `json:"n"`
		Size   string `json:"size"`
	}{
		Model:  c.model,
		Prompt: prompt,
		N:      1,
		Size:   defaultImageSize,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal image request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("images/generations"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build image request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute image request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "image request failed")
	}

	var apiResp struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode image response")
	}
	if len(apiResp.Data) == 0 || apiResp.Data[0].URL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "image response contained no url")
	}

	return &GeneratedImage{URL: apiResp.Data[0].URL}, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

// Package mailer sends transactional email through the hosted email
// provider's REST API.
package mailer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.resend.com"

// Message is one outbound email.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Sender dispatches a single message. The newsletter fan-out and tests
// depend on this interface rather than the concrete client.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError reports a failed send for a recipient set.
type DeliveryError struct {
	To    []string
	Cause error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %v failed: %v", e.To, e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// Config holds email provider configuration. An empty APIKey falls back to
// the RESEND_API_KEY environment variable.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is the email provider REST client.
type Client struct {
	rc *resty.Client
}

// New creates a mail client.
func New(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("RESEND_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("mail provider API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(timeout)
	return &Client{rc: rc}, nil
}

// Send dispatches one message.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return &DeliveryError{Cause: fmt.Errorf("no recipients")}
	}

	var apiErr struct {
		Message string `json:"message"`
	}
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(msg).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return &DeliveryError{To: msg.To, Cause: err}
	}
	if resp.IsError() {
		cause := fmt.Errorf("provider returned %d: %s", resp.StatusCode(), apiErr.Message)
		return &DeliveryError{To: msg.To, Cause: cause}
	}
	return nil
}

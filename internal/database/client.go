// Package database provides the REST client for the hosted document backend.
package database

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"strings"
	"time"

	"github.com/crypto-talks/platform/internal/httputil"
)

const (
	maxResponseBytes  = 8 << 20  // 8 MiB
	maxErrorBodyBytes = 32 << 10 // 32 KiB

	projectHeader = "X-Appwrite-Project"
	keyHeader     = "X-Appwrite-Key"
	sessionHeader = "X-Appwrite-Session"
)

// Client wraps the document backend's REST API.
type Client struct {
	endpoint   string
	projectID  string
	apiKey     string
	httpClient *http.Client
}

// Config holds backend connection configuration. Empty fields fall back to
// the APPWRITE_ENDPOINT, APPWRITE_PROJECT_ID and APPWRITE_API_KEY
// environment variables.
type Config struct {
	Endpoint  string
	ProjectID string
	APIKey    string
}

// NewClient creates a new backend client.
func NewClient(cfg Config) (*Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("APPWRITE_ENDPOINT")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("%w: backend endpoint is required", ErrInvalidInput)
	}

	parsed, err := neturl.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: backend endpoint must be a valid URL", ErrInvalidInput)
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = os.Getenv("APPWRITE_PROJECT_ID")
	}
	if projectID == "" {
		return nil, fmt.Errorf("%w: backend project ID is required", ErrInvalidInput)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("APPWRITE_API_KEY")
	}

	transport := http.DefaultTransport
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		cloned := base.Clone()
		if cloned.TLSClientConfig == nil {
			cloned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		} else if cloned.TLSClientConfig.MinVersion < tls.VersionTLS12 {
			cloned.TLSClientConfig = cloned.TLSClientConfig.Clone()
			cloned.TLSClientConfig.MinVersion = tls.VersionTLS12
		}
		transport = cloned
	}

	return &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		projectID: projectID,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}, nil
}

// request makes an HTTP request to the backend REST API. The session token,
// when non-empty, takes the place of the server API key so the call runs
// with the end user's permissions.
func (c *Client) request(ctx context.Context, method, path string, body any, query neturl.Values, session string) ([]byte, error) {
	url := c.endpoint + path
	if len(query) > 0 {
		url += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(projectHeader, c.projectID)
	if session != "" {
		req.Header.Set(sessionHeader, session)
	} else if c.apiKey != "" {
		req.Header.Set(keyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp)
	}

	respBody, err := httputil.ReadAllStrict(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}

func decodeAPIError(resp *http.Response) error {
	body, truncated, err := httputil.ReadAllWithLimit(resp.Body, maxErrorBodyBytes)
	if err != nil {
		return fmt.Errorf("read error response: %w", err)
	}

	apiErr := &APIError{Status: resp.StatusCode}
	if jsonErr := json.Unmarshal(body, apiErr); jsonErr != nil || apiErr.Message == "" {
		msg := strings.TrimSpace(string(body))
		if truncated {
			msg += "...(truncated)"
		}
		apiErr.Message = msg
	}
	if apiErr.Status == 0 {
		apiErr.Status = resp.StatusCode
	}
	return apiErr
}

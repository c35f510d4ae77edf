package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Account is an identity record held by the backend.
type Account struct {
	ID        string    `json:"$id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"$createdAt"`
}

// Session is an authenticated backend session. Secret is only populated on
// creation and is never persisted by this package.
type Session struct {
	ID       string `json:"$id"`
	UserID   string `json:"userId"`
	Secret   string `json:"secret"`
	Provider string `json:"provider"`
}

// CreateAccount registers a new identity. The backend rejects duplicate
// emails and weak passwords; its message is preserved in the returned error.
func (c *Client) CreateAccount(ctx context.Context, email, password, name string) (*Account, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	body := map[string]string{
		"userId":   uuid.New().String(),
		"email":    email,
		"password": password,
		"name":     name,
	}
	data, err := c.request(ctx, http.MethodPost, "/v1/account", body, nil, "")
	if err != nil {
		return nil, err
	}

	var account Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("%w: unmarshal account: %v", ErrBackend, err)
	}
	return &account, nil
}

// CreateEmailSession exchanges credentials for a session token.
func (c *Client) CreateEmailSession(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	body := map[string]string{
		"email":    email,
		"password": password,
	}
	data, err := c.request(ctx, http.MethodPost, "/v1/account/sessions/email", body, nil, "")
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: unmarshal session: %v", ErrBackend, err)
	}
	return &session, nil
}

// GetAccount returns the identity bound to the given session token.
func (c *Client) GetAccount(ctx context.Context, session string) (*Account, error) {
	if session == "" {
		return nil, fmt.Errorf("%w: session token is required", ErrInvalidInput)
	}

	data, err := c.request(ctx, http.MethodGet, "/v1/account", nil, nil, session)
	if err != nil {
		return nil, err
	}

	var account Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("%w: unmarshal account: %v", ErrBackend, err)
	}
	return &account, nil
}

// DeleteSession invalidates a session token.
func (c *Client) DeleteSession(ctx context.Context, session, sessionID string) error {
	if session == "" || sessionID == "" {
		return fmt.Errorf("%w: session token and ID are required", ErrInvalidInput)
	}

	path := "/v1/account/sessions/" + sessionID
	if _, err := c.request(ctx, http.MethodDelete, path, nil, nil, session); err != nil {
		return err
	}
	return nil
}

package database

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		Endpoint:  server.URL,
		ProjectID: "test-project",
		APIKey:    "test-key",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func TestNewClientRequiresEndpointAndProject(t *testing.T) {
	t.Setenv("APPWRITE_ENDPOINT", "")
	t.Setenv("APPWRITE_PROJECT_ID", "")
	t.Setenv("APPWRITE_API_KEY", "")

	if _, err := NewClient(Config{ProjectID: "p"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without endpoint, got %v", err)
	}
	if _, err := NewClient(Config{Endpoint: "https://backend.example.com"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without project, got %v", err)
	}
	if _, err := NewClient(Config{Endpoint: "not a url", ProjectID: "p"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for malformed endpoint, got %v", err)
	}
}

func TestRequestSetsAuthHeaders(t *testing.T) {
	var gotProject, gotKey, gotSession string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProject = r.Header.Get(projectHeader)
		gotKey = r.Header.Get(keyHeader)
		gotSession = r.Header.Get(sessionHeader)
		json.NewEncoder(w).Encode(map[string]any{"$id": "user-1", "email": "a@example.com"})
	}))

	if _, err := client.CreateAccount(context.Background(), "a@example.com", "password123", "A"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if gotProject != "test-project" || gotKey != "test-key" || gotSession != "" {
		t.Fatalf("unexpected headers: project=%q key=%q session=%q", gotProject, gotKey, gotSession)
	}

	if _, err := client.GetAccount(context.Background(), "session-secret"); err != nil {
		t.Fatalf("get account: %v", err)
	}
	// A session token replaces the server key.
	if gotSession != "session-secret" || gotKey != "" {
		t.Fatalf("expected session auth, got key=%q session=%q", gotKey, gotSession)
	}
}

func TestAPIErrorPreservesBackendMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"code":    409,
			"type":    "user_already_exists",
			"message": "A user with the same email already exists in this project.",
		})
	}))

	_, err := client.CreateAccount(context.Background(), "a@example.com", "password123", "A")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Type != "user_already_exists" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
	if Message(err) != "A user with the same email already exists in this project." {
		t.Fatalf("message not preserved: %q", Message(err))
	}
	if !IsConflict(err) {
		t.Fatalf("expected IsConflict")
	}
}

func TestAPIErrorNonJSONBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))

	_, err := client.GetAccount(context.Background(), "token")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Message != "upstream unavailable" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestCreateEmailSession(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/account/sessions/email" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@example.com" {
			t.Errorf("unexpected body: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"$id":    "session-1",
			"userId": "user-1",
			"secret": "s3cret",
		})
	}))

	session, err := client.CreateEmailSession(context.Background(), "a@example.com", "password123")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID != "session-1" || session.UserID != "user-1" || session.Secret != "s3cret" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestDeleteSession(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.DeleteSession(context.Background(), "secret", "session-1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if gotPath != "/v1/account/sessions/session-1" {
		t.Fatalf("unexpected path %s", gotPath)
	}
}

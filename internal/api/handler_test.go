package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/crypto-talks/platform/internal/database"
	"github.com/crypto-talks/platform/internal/market"
	"github.com/crypto-talks/platform/internal/metrics"
	"github.com/crypto-talks/platform/internal/middleware"
	"github.com/crypto-talks/platform/internal/news"
	"github.com/crypto-talks/platform/internal/portfolio"
)

// fakeStore is an in-memory backend good enough to drive the full HTTP
// surface: accounts keyed by email, sessions keyed by secret, documents
// appended per collection.
type fakeStore struct {
	accounts  map[string]*database.Account
	passwords map[string]string
	sessions  map[string]*database.Session
	docs      map[string][]storedDoc
	nextID    int
}

type storedDoc struct {
	id    string
	attrs any
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:  make(map[string]*database.Account),
		passwords: make(map[string]string),
		sessions:  make(map[string]*database.Session),
		docs:      make(map[string][]storedDoc),
	}
}

func (f *fakeStore) mintID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateAccount(ctx context.Context, email, password, name string) (*database.Account, error) {
	if _, exists := f.accounts[email]; exists {
		return nil, &database.APIError{
			Status:  http.StatusConflict,
			Type:    "user_already_exists",
			Message: "A user with the same email already exists.",
		}
	}
	account := &database.Account{ID: f.mintID("user"), Name: name, Email: email, CreatedAt: time.Now().UTC()}
	f.accounts[email] = account
	f.passwords[email] = password
	return account, nil
}

func (f *fakeStore) CreateEmailSession(ctx context.Context, email, password string) (*database.Session, error) {
	account, ok := f.accounts[email]
	if !ok || f.passwords[email] != password {
		return nil, &database.APIError{
			Status:  http.StatusUnauthorized,
			Type:    "user_invalid_credentials",
			Message: "Invalid credentials.",
		}
	}
	session := &database.Session{ID: f.mintID("session"), UserID: account.ID, Secret: f.mintID("secret")}
	f.sessions[session.Secret] = session
	return session, nil
}

func (f *fakeStore) GetAccount(ctx context.Context, secret string) (*database.Account, error) {
	session, ok := f.sessions[secret]
	if !ok {
		return nil, &database.APIError{Status: http.StatusUnauthorized, Type: "general_unauthorized_scope"}
	}
	for _, account := range f.accounts {
		if account.ID == session.UserID {
			return account, nil
		}
	}
	return nil, &database.APIError{Status: http.StatusNotFound, Type: "user_not_found"}
}

func (f *fakeStore) DeleteSession(ctx context.Context, secret, sessionID string) error {
	if _, ok := f.sessions[secret]; !ok {
		return &database.APIError{Status: http.StatusNotFound, Type: "session_not_found"}
	}
	delete(f.sessions, secret)
	return nil
}

func (f *fakeStore) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, attrs any) (*database.Document, error) {
	if documentID == "" {
		documentID = f.mintID("doc")
	}
	f.docs[collectionID] = append(f.docs[collectionID], storedDoc{id: documentID, attrs: attrs})
	return buildDocument(documentID, attrs)
}

func (f *fakeStore) ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...database.Query) ([]database.Document, error) {
	var out []database.Document
	for _, stored := range f.docs[collectionID] {
		if !matchesQueries(stored.attrs, queries) {
			continue
		}
		doc, err := buildDocument(stored.id, stored.attrs)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}

func buildDocument(id string, attrs any) (*database.Document, error) {
	body, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	m["$id"] = id
	m["$createdAt"] = time.Now().UTC().Format(time.RFC3339)
	full, _ := json.Marshal(m)

	var doc database.Document
	if err := json.Unmarshal(full, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func matchesQueries(attrs any, queries []database.Query) bool {
	body, _ := json.Marshal(attrs)
	var m map[string]any
	json.Unmarshal(body, &m)

	for _, q := range queries {
		var attr, value string
		if _, err := fmt.Sscanf(string(q), "equal(%q, [%q])", &attr, &value); err == nil {
			if got, _ := m[attr].(string); got != value {
				return false
			}
			continue
		}
		if _, err := fmt.Sscanf(string(q), "isNotNull(%q)", &attr); err == nil {
			if m[attr] == nil {
				return false
			}
		}
	}
	return true
}

type testServer struct {
	router *mux.Router
	store  *fakeStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := newFakeStore()
	svc := portfolio.New(store, portfolio.Config{}, nil)

	marketUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/simple/price":
			json.NewEncoder(w).Encode(map[string]map[string]float64{"bitcoin": {"usd": 100000}})
		case "/search/trending":
			json.NewEncoder(w).Encode(map[string]any{"coins": []map[string]any{
				{"item": map[string]any{"id": "solana", "name": "Solana"}},
			}})
		default:
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "current_price": 100000.0},
			})
		}
	}))
	t.Cleanup(marketUpstream.Close)

	newsUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"Data": []map[string]any{
			{"id": "1", "title": "Bitcoin rallies", "published_on": 1738368000},
		}})
	}))
	t.Cleanup(newsUpstream.Close)

	auth, err := middleware.NewSessionAuth("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new session auth: %v", err)
	}

	router := NewRouter(Deps{
		Portfolio:     svc,
		Market:        market.New(market.Config{BaseURL: marketUpstream.URL, RatePerMinute: 10000}),
		News:          news.New(news.Config{BaseURL: newsUpstream.URL}),
		Auth:          auth,
		Metrics:       metrics.New(),
		RatePerSecond: 1000,
		RateBurst:     1000,
	})
	return &testServer{router: router, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) registerUser(t *testing.T, email string) (userID, token string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": email, "password": "password123", "name": "Ada",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		UserID string `json:"userId"`
		Token  string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.UserID == "" || resp.Token == "" {
		t.Fatalf("incomplete register response: %s", rec.Body.String())
	}
	return resp.UserID, resp.Token
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	ts := newTestServer(t)
	userID, _ := ts.registerUser(t, "ada@example.com")

	// Duplicate registration surfaces the backend's message.
	rec := ts.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": "ada@example.com", "password": "password123", "name": "Ada",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", rec.Code)
	}

	// Fresh login.
	rec = ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var login struct {
		UserID string `json:"userId"`
		Token  string `json:"token"`
	}
	json.Unmarshal(rec.Body.Bytes(), &login)
	if login.UserID != userID {
		t.Fatalf("login user mismatch: %s vs %s", login.UserID, userID)
	}

	// Wrong password.
	rec = ts.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", rec.Code)
	}

	// /auth/me with the token.
	rec = ts.do(t, http.MethodGet, "/v1/auth/me", login.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d", rec.Code)
	}
	var me struct {
		Email string `json:"email"`
	}
	json.Unmarshal(rec.Body.Bytes(), &me)
	if me.Email != "ada@example.com" {
		t.Fatalf("me: %s", rec.Body.String())
	}

	// /auth/me without a token is null, not an error.
	rec = ts.do(t, http.MethodGet, "/v1/auth/me", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "null\n" {
		t.Fatalf("anonymous me: %d %q", rec.Code, rec.Body.String())
	}
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.registerUser(t, "ada@example.com")

	rec := ts.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: %d %s", rec.Code, rec.Body.String())
	}

	// Logging out again hits a gone backend session; still a success.
	rec = ts.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("repeat logout: %d %s", rec.Code, rec.Body.String())
	}

	// After logout the backend session is gone; /auth/me is null.
	rec = ts.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "null\n" {
		t.Fatalf("me after logout: %d %q", rec.Code, rec.Body.String())
	}
}

func TestHoldingsRoundtrip(t *testing.T) {
	ts := newTestServer(t)
	userID, token := ts.registerUser(t, "ada@example.com")

	// Unauthenticated access is rejected.
	rec := ts.do(t, http.MethodGet, "/v1/portfolio/holdings", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous holdings: %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/v1/portfolio/holdings", token, map[string]any{
		"holdings": []map[string]any{
			{"coinId": "bitcoin", "amount": 0.5},
			{"coinId": "ethereum", "amount": 10},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save holdings: %d %s", rec.Code, rec.Body.String())
	}

	// Saving for someone else's user ID is rejected.
	rec = ts.do(t, http.MethodPost, "/v1/portfolio/holdings", token, map[string]any{
		"userId":   "someone-else",
		"holdings": []map[string]any{{"coinId": "bitcoin", "amount": 1}},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("foreign save: %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/v1/portfolio/holdings", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list holdings: %d %s", rec.Code, rec.Body.String())
	}
	var records []portfolio.HoldingsRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode holdings: %v", err)
	}
	if len(records) != 1 || records[0].UserID != userID || len(records[0].Holdings) != 2 {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestPortfolioValue(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.registerUser(t, "ada@example.com")

	rec := ts.do(t, http.MethodPost, "/v1/portfolio/holdings", token, map[string]any{
		"holdings": []map[string]any{{"coinId": "bitcoin", "amount": 0.5}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save holdings: %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/v1/portfolio/value", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("value: %d %s", rec.Code, rec.Body.String())
	}
	var valuation struct {
		Total string `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &valuation)
	if valuation.Total != "50000" {
		t.Fatalf("unexpected total %q (%s)", valuation.Total, rec.Body.String())
	}
}

func TestSubscribe(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/subscribers", "", map[string]string{"email": "a@example.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("subscribe: %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/v1/subscribers", "", map[string]string{"email": "a@example.com"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate subscribe: %d %s", rec.Code, rec.Body.String())
	}
	var errResp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(rec.Body.Bytes(), &errResp)
	if errResp.Error != "Subscriber already exists" {
		t.Fatalf("unexpected error message %q", errResp.Error)
	}
}

func TestMarketRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/market/markets?per_page=5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("markets: %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/v1/market/markets?per_page=zero", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad per_page: %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/v1/market/trending", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("trending: %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/v1/market/search", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("search without query: %d", rec.Code)
	}
}

func TestNewsRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/news", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("news: %d %s", rec.Code, rec.Body.String())
	}
	var articles []news.Article
	if err := json.Unmarshal(rec.Body.Bytes(), &articles); err != nil {
		t.Fatalf("decode news: %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "Bitcoin rallies" {
		t.Fatalf("unexpected articles: %+v", articles)
	}
}

func TestAssistantUnavailable(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/assistant/chat", "", map[string]string{"message": "hi"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("chat without assistant: %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/v1/news/summary", "", map[string]string{"article": "text"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("summary without assistant: %d", rec.Code)
	}
}

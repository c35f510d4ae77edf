// Package api wires the platform's HTTP surface: auth, portfolio, market
// data, news, the AI assistant and the newsletter dispatch endpoint.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/crypto-talks/platform/internal/assistant"
	"github.com/crypto-talks/platform/internal/market"
	"github.com/crypto-talks/platform/internal/metrics"
	"github.com/crypto-talks/platform/internal/middleware"
	"github.com/crypto-talks/platform/internal/news"
	"github.com/crypto-talks/platform/internal/portfolio"
	"github.com/crypto-talks/platform/pkg/logger"
)

// Deps bundles everything the router serves. Assistant may be nil when the
// LLM features are disabled.
type Deps struct {
	Portfolio  *portfolio.Service
	Market     *market.Client
	News       *news.Client
	Assistant  *assistant.Assistant
	Auth       *middleware.SessionAuth
	Newsletter http.Handler
	Metrics    *metrics.Metrics
	Log        *logger.Logger

	AllowedOrigins []string
	RatePerSecond  int
	RateBurst      int
}

type handler struct {
	deps Deps
}

// NewRouter builds the platform router with its middleware chain.
func NewRouter(deps Deps) *mux.Router {
	if deps.Log == nil {
		deps.Log = logger.NewDefault("api")
	}
	h := &handler{deps: deps}

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(deps.Log))
	if deps.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewCORSMiddleware(deps.AllowedOrigins, deps.Log).Handler)
	r.Use(middleware.NewRateLimiter(deps.RatePerSecond, deps.RateBurst, deps.Log).Handler)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	v1.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	v1.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
	v1.HandleFunc("/auth/me", h.currentUser).Methods(http.MethodGet)

	v1.HandleFunc("/subscribers", h.subscribe).Methods(http.MethodPost)

	authed := v1.PathPrefix("/portfolio").Subrouter()
	authed.Use(deps.Auth.Middleware)
	authed.HandleFunc("/holdings", h.saveHoldings).Methods(http.MethodPost)
	authed.HandleFunc("/holdings", h.listHoldings).Methods(http.MethodGet)
	authed.HandleFunc("/value", h.portfolioValue).Methods(http.MethodGet)

	v1.HandleFunc("/market/markets", h.markets).Methods(http.MethodGet)
	v1.HandleFunc("/market/coins/{id}/chart", h.marketChart).Methods(http.MethodGet)
	v1.HandleFunc("/market/search", h.marketSearch).Methods(http.MethodGet)
	v1.HandleFunc("/market/trending", h.marketTrending).Methods(http.MethodGet)

	v1.HandleFunc("/news", h.latestNews).Methods(http.MethodGet)
	v1.HandleFunc("/news/summary", h.newsSummary).Methods(http.MethodPost)
	v1.HandleFunc("/assistant/chat", h.assistantChat).Methods(http.MethodPost)

	if deps.Newsletter != nil {
		r.PathPrefix("/newsletter").Handler(http.StripPrefix("/newsletter", deps.Newsletter))
	}

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

type sessionResponse struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Token  string `json:"token,omitempty"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	session, err := h.deps.Portfolio.CreateAccount(r.Context(), payload.Email, payload.Password, payload.Name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.respondWithSession(w, http.StatusCreated, session)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	session, err := h.deps.Portfolio.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.respondWithSession(w, http.StatusOK, session)
}

func (h *handler) respondWithSession(w http.ResponseWriter, status int, session *portfolio.Session) {
	token, err := h.deps.Auth.Mint(session)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, status, sessionResponse{
		UserID: session.UserID,
		Name:   session.Name,
		Email:  session.Email,
		Token:  token,
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionFromHeader(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	if err := h.deps.Portfolio.Logout(r.Context(), session); err != nil {
		// A missing backend session is non-fatal: the user is logged out
		// either way.
		var sessionErr *portfolio.SessionError
		if !errors.As(err, &sessionErr) {
			writeError(w, statusFor(err), err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) currentUser(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionFromHeader(r)
	if err != nil {
		// No token means no session: an expected state, mirrored as null.
		writeJSON(w, http.StatusOK, nil)
		return
	}

	current, err := h.deps.Portfolio.CurrentUser(r.Context(), session.Token)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if current == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		UserID: current.UserID,
		Name:   current.Name,
		Email:  current.Email,
	})
}

func (h *handler) sessionFromHeader(r *http.Request) (*portfolio.Session, error) {
	header := r.Header.Get("Authorization")
	if len(header) <= len("Bearer ") {
		return nil, fmt.Errorf("missing bearer token")
	}
	return h.deps.Auth.Verify(header[len("Bearer "):])
}

// ---------------------------------------------------------------------------
// Portfolio
// ---------------------------------------------------------------------------

func (h *handler) saveHoldings(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	var payload struct {
		UserID   string              `json:"userId"`
		Holdings []portfolio.Holding `json:"holdings"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.UserID == "" {
		payload.UserID = session.UserID
	}

	if err := h.deps.Portfolio.SaveHoldings(r.Context(), session, payload.UserID, payload.Holdings); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *handler) listHoldings(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	records, err := h.deps.Portfolio.Holdings(r.Context(), session.UserID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) portfolioValue(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	valuation, err := h.deps.Portfolio.Value(r.Context(), session.UserID, h.deps.Market)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, valuation)
}

func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.deps.Portfolio.SaveSubscriber(r.Context(), payload.Email); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

func (h *handler) markets(w http.ResponseWriter, r *http.Request) {
	params := market.MarketsParams{}
	if perPage := r.URL.Query().Get("per_page"); perPage != "" {
		n, err := strconv.Atoi(perPage)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid per_page"))
			return
		}
		params.PerPage = n
	}
	if ids := r.URL.Query()["ids"]; len(ids) > 0 {
		params.CoinIDs = ids
	}

	coins, err := h.deps.Market.Markets(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, coins)
}

func (h *handler) marketChart(w http.ResponseWriter, r *http.Request) {
	coinID := mux.Vars(r)["id"]
	days := 30
	if d := r.URL.Query().Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid days"))
			return
		}
		days = n
	}

	chart, err := h.deps.Market.MarketChart(r.Context(), coinID, days)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (h *handler) marketSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}

	coins, err := h.deps.Market.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, coins)
}

func (h *handler) marketTrending(w http.ResponseWriter, r *http.Request) {
	coins, err := h.deps.Market.Trending(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, coins)
}

// ---------------------------------------------------------------------------
// News & assistant
// ---------------------------------------------------------------------------

func (h *handler) latestNews(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit"))
			return
		}
		limit = n
	}

	articles, err := h.deps.News.Latest(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (h *handler) newsSummary(w http.ResponseWriter, r *http.Request) {
	if h.deps.Assistant == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("assistant is not configured"))
		return
	}

	var payload struct {
		Article string `json:"article"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Article == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("article text is required"))
		return
	}

	summary, err := h.deps.Assistant.Summarize(r.Context(), payload.Article)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("failed to generate summary"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (h *handler) assistantChat(w http.ResponseWriter, r *http.Request) {
	if h.deps.Assistant == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("assistant is not configured"))
		return
	}

	var payload struct {
		History []assistant.ChatMessage `json:"history"`
		Message string                  `json:"message"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Message == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("message is required"))
		return
	}

	reply, err := h.deps.Assistant.Chat(r.Context(), payload.History, payload.Message)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

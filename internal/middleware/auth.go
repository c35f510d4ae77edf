package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crypto-talks/platform/internal/portfolio"
)

type contextKey string

const sessionContextKey contextKey = "session"

const defaultSessionTTL = 24 * time.Hour

// SessionAuth mints and verifies the signed session tokens the API hands to
// clients after a backend login.
type SessionAuth struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionAuth creates the session token authority.
func NewSessionAuth(secret string, ttl time.Duration) (*SessionAuth, error) {
	if secret == "" {
		return nil, fmt.Errorf("session signing secret is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionAuth{secret: []byte(secret), ttl: ttl}, nil
}

type sessionClaims struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	SessionID     string `json:"sid"`
	SessionSecret string `json:"sct"`
	jwt.RegisteredClaims
}

// Mint signs a token carrying the session's identity and backend handle.
func (a *SessionAuth) Mint(session *portfolio.Session) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Name:          session.Name,
		Email:         session.Email,
		SessionID:     session.SessionID,
		SessionSecret: session.Token,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses a token back into the session it carries.
func (a *SessionAuth) Verify(token string) (*portfolio.Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return &portfolio.Session{
		UserID:    claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		SessionID: claims.SessionID,
		Token:     claims.SessionSecret,
	}, nil
}

// Middleware rejects requests without a valid bearer token and puts the
// session on the request context.
func (a *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := a.sessionFromRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

func (a *SessionAuth) sessionFromRequest(r *http.Request) (*portfolio.Session, error) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return nil, fmt.Errorf("missing bearer token")
	}
	return a.Verify(token)
}

// WithSession attaches a session to the context.
func WithSession(ctx context.Context, session *portfolio.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext returns the authenticated session, or nil.
func SessionFromContext(ctx context.Context) *portfolio.Session {
	session, _ := ctx.Value(sessionContextKey).(*portfolio.Session)
	return session
}

// UserID returns the authenticated user's ID, or "".
func UserID(ctx context.Context) string {
	if session := SessionFromContext(ctx); session != nil {
		return session.UserID
	}
	return ""
}

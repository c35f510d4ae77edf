package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/crypto-talks/platform/internal/httputil"
	"github.com/crypto-talks/platform/internal/portfolio"
)

const maxRequestBytes = 1 << 20 // 1 MiB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(body io.Reader, target any) error {
	return httputil.DecodeJSON(body, target, maxRequestBytes)
}

// statusFor maps the portfolio error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	var (
		creationErr   *portfolio.AccountCreationError
		authErr       *portfolio.AuthenticationError
		sessionErr    *portfolio.SessionError
		duplicateErr  *portfolio.DuplicateSubscriberError
		schemaErr     *portfolio.SchemaError
		persistenceEr *portfolio.PersistenceError
	)
	switch {
	case errors.As(err, &creationErr):
		return http.StatusConflict
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &sessionErr):
		return http.StatusUnauthorized
	case errors.As(err, &duplicateErr):
		return http.StatusConflict
	case errors.As(err, &schemaErr):
		return http.StatusInternalServerError
	case errors.As(err, &persistenceEr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

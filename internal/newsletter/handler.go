// Package newsletter implements the newsletter dispatch endpoint: a static
// form, a shared-secret gate, and a fan-out send to every active subscriber.
package newsletter

import (
	"context"
	"crypto/subtle"
	"embed"
	"mime"
	"net/http"
	"net/url"

	"github.com/crypto-talks/platform/internal/mailer"
	"github.com/crypto-talks/platform/internal/metrics"
	"github.com/crypto-talks/platform/internal/portfolio"
	"github.com/crypto-talks/platform/pkg/logger"
)

//go:embed static
var staticFS embed.FS

// Machine-readable error codes appended to the redirect URL.
const (
	CodeInvalidRequest    = "invalid-request"
	CodeMissingFormFields = "missing-form-fields"
	CodeServerError       = "server-error"
)

const formContentType = "application/x-www-form-urlencoded"

// SubscriberSource lists the addresses the newsletter goes to.
type SubscriberSource interface {
	ActiveSubscribers(ctx context.Context) ([]portfolio.Subscriber, error)
}

// Config holds the dispatch endpoint's settings.
type Config struct {
	// Password is the shared secret the form must present.
	Password string
	// From is the sender address, e.g. "Crypto Talks <news@crypto-talks.dev>".
	From string
	// Subject and HTMLBody form the fixed newsletter payload.
	Subject  string
	HTMLBody string
	// Concurrency bounds the fan-out worker pool.
	Concurrency int
}

func (c *Config) applyDefaults() {
	if c.Subject == "" {
		c.Subject = "Your Monthly Newsletter"
	}
	if c.HTMLBody == "" {
		c.HTMLBody = "<h1>Welcome to our Newsletter!</h1><p>Here are the latest updates...</p>"
	}
}

// Handler serves the newsletter form and dispatch endpoint.
type Handler struct {
	cfg        Config
	subs       SubscriberSource
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// NewHandler creates the dispatch handler. The metrics sink may be nil.
func NewHandler(cfg Config, subs SubscriberSource, sender mailer.Sender, m *metrics.Metrics, log *logger.Logger) *Handler {
	cfg.applyDefaults()
	if log == nil {
		log = logger.NewDefault("newsletter")
	}
	return &Handler{
		cfg:        cfg,
		subs:       subs,
		dispatcher: NewDispatcher(sender, cfg.Concurrency),
		metrics:    m,
		log:        log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.serveStatic(w, "static/index.html")
	case http.MethodPost:
		h.dispatch(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != formContentType {
		h.log.Error("incorrect content type", "content_type", r.Header.Get("Content-Type"))
		h.redirectWithCode(w, r, CodeInvalidRequest)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.log.Error("malformed form body", "error", err.Error())
		h.redirectWithCode(w, r, CodeInvalidRequest)
		return
	}

	if !r.PostForm.Has("password") {
		h.redirectWithCode(w, r, CodeMissingFormFields)
		return
	}
	password := r.PostForm.Get("password")
	if subtle.ConstantTimeCompare([]byte(password), []byte(h.cfg.Password)) != 1 {
		h.log.Error("invalid dispatch password")
		h.redirectWithCode(w, r, CodeInvalidRequest)
		return
	}

	subscribers, err := h.subs.ActiveSubscribers(r.Context())
	if err != nil {
		h.log.Error("list subscribers", "error", err.Error())
		h.redirectWithCode(w, r, CodeServerError)
		return
	}

	recipients := make([]string, 0, len(subscribers))
	for _, sub := range subscribers {
		recipients = append(recipients, sub.Email)
	}

	msg := mailer.Message{
		From:    h.cfg.From,
		Subject: h.cfg.Subject,
		HTML:    h.cfg.HTMLBody,
	}
	results := h.dispatcher.Send(r.Context(), msg, recipients)

	failed := 0
	for _, res := range results {
		if h.metrics != nil {
			h.metrics.RecordMailSend(res.Err == nil)
		}
		if res.Err != nil {
			failed++
			h.log.Error("send failed", "to", res.Email, "error", res.Err.Error())
		}
	}
	h.log.Info("newsletter dispatched", "recipients", len(recipients), "failed", failed)

	// Already-delivered emails are not rolled back; any failure still fails
	// the whole request.
	if failed > 0 {
		h.redirectWithCode(w, r, CodeServerError)
		return
	}
	h.serveStatic(w, "static/success.html")
}

// redirectWithCode sends the caller back to the referring page with a
// machine-readable code query parameter set.
func (h *Handler) redirectWithCode(w http.ResponseWriter, r *http.Request, code string) {
	target, err := url.Parse(r.Referer())
	if err != nil || target.String() == "" {
		target = &url.URL{Path: "/"}
	}
	q := target.Query()
	q.Set("code", code)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}

func (h *Handler) serveStatic(w http.ResponseWriter, name string) {
	page, err := staticFS.ReadFile(name)
	if err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

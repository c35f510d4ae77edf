package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/crypto-talks/platform/internal/database"
	"github.com/crypto-talks/platform/pkg/logger"
)

// Store is the narrow slice of the backend client the service depends on.
// It exists so the service is constructed explicitly and tests can supply
// fakes instead of a live backend.
type Store interface {
	CreateAccount(ctx context.Context, email, password, name string) (*database.Account, error)
	CreateEmailSession(ctx context.Context, email, password string) (*database.Session, error)
	GetAccount(ctx context.Context, session string) (*database.Account, error)
	DeleteSession(ctx context.Context, session, sessionID string) error
	CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, attributes any) (*database.Document, error)
	ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...database.Query) ([]database.Document, error)
}

// Config names the backend collections the service reads and writes.
type Config struct {
	DatabaseID            string
	UsersCollection       string
	SubscribersCollection string
}

func (c *Config) applyDefaults() {
	if c.DatabaseID == "" {
		c.DatabaseID = "crypto_portfolio"
	}
	if c.UsersCollection == "" {
		c.UsersCollection = "users"
	}
	if c.SubscribersCollection == "" {
		c.SubscribersCollection = "subscribers"
	}
}

// Service exposes the portfolio and subscriber operations.
type Service struct {
	store Store
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
}

// New creates a Service backed by the given store.
func New(store Store, cfg Config, log *logger.Logger) *Service {
	cfg.applyDefaults()
	if log == nil {
		log = logger.NewDefault("portfolio")
	}
	return &Service{store: store, cfg: cfg, log: log, now: time.Now}
}

// CreateAccount registers a new identity and logs it in. The backend's
// rejection message (existing identity, malformed email, weak password) is
// propagated verbatim.
func (s *Service) CreateAccount(ctx context.Context, email, password, name string) (*Session, error) {
	if _, err := s.store.CreateAccount(ctx, email, password, name); err != nil {
		return nil, &AccountCreationError{Message: database.Message(err), Cause: err}
	}
	return s.Login(ctx, email, password)
}

// Login exchanges credentials for a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	backendSession, err := s.store.CreateEmailSession(ctx, email, password)
	if err != nil {
		return nil, &AuthenticationError{Message: database.Message(err), Cause: err}
	}

	account, err := s.store.GetAccount(ctx, backendSession.Secret)
	if err != nil {
		return nil, &AuthenticationError{Message: database.Message(err), Cause: err}
	}

	return &Session{
		UserID:    account.ID,
		Name:      account.Name,
		Email:     account.Email,
		SessionID: backendSession.ID,
		Token:     backendSession.Secret,
	}, nil
}

// Logout invalidates the session. Callers should treat a SessionError as
// non-fatal: the session was already gone.
func (s *Service) Logout(ctx context.Context, session *Session) error {
	if session == nil || session.Token == "" || session.SessionID == "" {
		return &SessionError{Message: "no active session"}
	}
	if err := s.store.DeleteSession(ctx, session.Token, session.SessionID); err != nil {
		if database.IsUnauthorized(err) || database.IsNotFound(err) {
			return &SessionError{Message: "session no longer valid", Cause: err}
		}
		return &PersistenceError{Op: "logout", Cause: err}
	}
	return nil
}

// CurrentUser resolves a session token to its identity. A missing or expired
// session yields (nil, nil): an expected state, not a failure.
func (s *Service) CurrentUser(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	account, err := s.store.GetAccount(ctx, token)
	if err != nil {
		if database.IsUnauthorized(err) || database.IsNotFound(err) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "current user", Cause: err}
	}
	return &Session{
		UserID: account.ID,
		Name:   account.Name,
		Email:  account.Email,
		Token:  token,
	}, nil
}

// SaveHoldings appends a new holdings record for the user. Records never
// merge; each call creates a fresh snapshot. The userID must match the
// authenticated session.
func (s *Service) SaveHoldings(ctx context.Context, session *Session, userID string, holdings []Holding) error {
	if session == nil || session.UserID == "" {
		return &SessionError{Message: "no active session"}
	}
	if userID != session.UserID {
		return &SessionError{Message: fmt.Sprintf("user %s does not own this session", userID)}
	}

	attrs := holdingsAttrs{
		UserID:    userID,
		Holdings:  make([]holdingAttr, 0, len(holdings)),
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	for _, h := range holdings {
		attrs.Holdings = append(attrs.Holdings, holdingAttr{CoinID: h.CoinID, Amount: h.Amount})
	}

	if _, err := s.store.CreateDocument(ctx, s.cfg.DatabaseID, s.cfg.UsersCollection, "", attrs); err != nil {
		return &PersistenceError{Op: "save holdings", Cause: err}
	}
	return nil
}

// Holdings returns every holdings record for the user, in backend order.
// Callers that care about recency sort by CreatedAt. The result is empty,
// never nil, for users with no records.
func (s *Service) Holdings(ctx context.Context, userID string) ([]HoldingsRecord, error) {
	docs, err := s.store.ListDocuments(ctx, s.cfg.DatabaseID, s.cfg.UsersCollection,
		database.QueryEqual("user_id", userID))
	if err != nil {
		return nil, &PersistenceError{Op: "get holdings", Cause: err}
	}

	records := make([]HoldingsRecord, 0, len(docs))
	for _, doc := range docs {
		record, err := decodeHoldingsRecord(s.cfg.UsersCollection, doc)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// SaveSubscriber adds an email to the newsletter list. The pre-write
// existence check keeps the original contract; the backend's unique index on
// email closes the remaining check-then-insert window, so a conflicting
// write also reports a duplicate.
func (s *Service) SaveSubscriber(ctx context.Context, email string) error {
	if email == "" {
		return &PersistenceError{Op: "save subscriber", Cause: fmt.Errorf("email is required")}
	}

	existing, err := s.store.ListDocuments(ctx, s.cfg.DatabaseID, s.cfg.SubscribersCollection,
		database.QueryEqual("email", email))
	if err != nil {
		return &PersistenceError{Op: "save subscriber", Cause: err}
	}
	if len(existing) > 0 {
		return &DuplicateSubscriberError{Email: email}
	}

	attrs := subscriberAttrs{
		Email:        email,
		SubscribedAt: s.now().UTC().Format(time.RFC3339),
	}
	if _, err := s.store.CreateDocument(ctx, s.cfg.DatabaseID, s.cfg.SubscribersCollection, "", attrs); err != nil {
		if database.IsConflict(err) {
			return &DuplicateSubscriberError{Email: email}
		}
		return &PersistenceError{Op: "save subscriber", Cause: err}
	}
	return nil
}

// ActiveSubscribers returns every subscriber with a non-null subscribed_at.
func (s *Service) ActiveSubscribers(ctx context.Context) ([]Subscriber, error) {
	docs, err := s.store.ListDocuments(ctx, s.cfg.DatabaseID, s.cfg.SubscribersCollection,
		database.QueryIsNotNull("subscribed_at"))
	if err != nil {
		return nil, &PersistenceError{Op: "list subscribers", Cause: err}
	}

	subscribers := make([]Subscriber, 0, len(docs))
	for _, doc := range docs {
		sub, err := decodeSubscriber(s.cfg.SubscribersCollection, doc)
		if err != nil {
			return nil, err
		}
		subscribers = append(subscribers, sub)
	}
	return subscribers, nil
}

func decodeHoldingsRecord(collection string, doc database.Document) (HoldingsRecord, error) {
	var attrs holdingsAttrs
	if err := doc.Decode(&attrs); err != nil {
		return HoldingsRecord{}, &SchemaError{Collection: collection, DocumentID: doc.ID, Cause: err}
	}
	if attrs.UserID == "" {
		return HoldingsRecord{}, &SchemaError{Collection: collection, DocumentID: doc.ID,
			Cause: fmt.Errorf("missing user_id")}
	}

	createdAt, err := time.Parse(time.RFC3339, attrs.CreatedAt)
	if err != nil {
		// Older records carry no created_at; fall back to the backend's
		// system timestamp.
		if attrs.CreatedAt != "" {
			return HoldingsRecord{}, &SchemaError{Collection: collection, DocumentID: doc.ID, Cause: err}
		}
		createdAt = doc.CreatedAt
	}

	record := HoldingsRecord{
		ID:        doc.ID,
		UserID:    attrs.UserID,
		Holdings:  make([]Holding, 0, len(attrs.Holdings)),
		CreatedAt: createdAt,
	}
	for _, h := range attrs.Holdings {
		record.Holdings = append(record.Holdings, Holding{CoinID: h.CoinID, Amount: h.Amount})
	}
	return record, nil
}

func decodeSubscriber(collection string, doc database.Document) (Subscriber, error) {
	var attrs subscriberAttrs
	if err := doc.Decode(&attrs); err != nil {
		return Subscriber{}, &SchemaError{Collection: collection, DocumentID: doc.ID, Cause: err}
	}
	if attrs.Email == "" {
		return Subscriber{}, &SchemaError{Collection: collection, DocumentID: doc.ID,
			Cause: fmt.Errorf("missing email")}
	}

	subscribedAt, err := time.Parse(time.RFC3339, attrs.SubscribedAt)
	if err != nil {
		return Subscriber{}, &SchemaError{Collection: collection, DocumentID: doc.ID, Cause: err}
	}

	return Subscriber{ID: doc.ID, Email: attrs.Email, SubscribedAt: subscribedAt}, nil
}

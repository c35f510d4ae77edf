package portfolio

import "fmt"

// AccountCreationError reports a failed registration. Message carries the
// backend's wording verbatim.
type AccountCreationError struct {
	Message string
	Cause   error
}

func (e *AccountCreationError) Error() string {
	return "account creation failed: " + e.Message
}

func (e *AccountCreationError) Unwrap() error { return e.Cause }

// AuthenticationError reports rejected credentials.
type AuthenticationError struct {
	Message string
	Cause   error
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Message
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// SessionError reports an operation that needs a session when none exists.
// Callers should treat it as non-fatal.
type SessionError struct {
	Message string
	Cause   error
}

func (e *SessionError) Error() string { return "session error: " + e.Message }

func (e *SessionError) Unwrap() error { return e.Cause }

// PersistenceError reports a backend read or write failure.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// DuplicateSubscriberError reports a newsletter signup for an address that
// is already subscribed.
type DuplicateSubscriberError struct {
	Email string
}

func (e *DuplicateSubscriberError) Error() string { return "Subscriber already exists" }

// SchemaError reports a stored document that does not match the expected
// shape.
type SchemaError struct {
	Collection string
	DocumentID string
	Cause      error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("malformed document %s in %s: %v", e.DocumentID, e.Collection, e.Cause)
}

func (e *SchemaError) Unwrap() error { return e.Cause }

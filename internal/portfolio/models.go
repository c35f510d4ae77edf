// Package portfolio implements account, holdings and newsletter subscriber
// operations on top of the hosted document backend.
package portfolio

import (
	"time"
)

// Session is an authenticated user's identity. Token is the backend session
// secret and SessionID its handle; neither is serialized to clients.
type Session struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	SessionID string `json:"-"`
	Token     string `json:"-"`
}

// Holding is a single portfolio entry.
type Holding struct {
	CoinID string  `json:"coinId"`
	Amount float64 `json:"amount"`
}

// HoldingsRecord is one persisted snapshot of a user's holdings. Every save
// appends a new record; multiple records per user accumulate and callers
// interpret recency via CreatedAt.
type HoldingsRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Holdings  []Holding `json:"holdings"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscriber is an email address opted into newsletter delivery.
type Subscriber struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribedAt"`
}

// Wire shapes for the backend's collections.

type holdingsAttrs struct {
	UserID    string        `json:"user_id"`
	Holdings  []holdingAttr `json:"holdings"`
	CreatedAt string        `json:"created_at"`
}

type holdingAttr struct {
	CoinID string  `json:"coin_id"`
	Amount float64 `json:"amount"`
}

type subscriberAttrs struct {
	Email        string `json:"email"`
	SubscribedAt string `json:"subscribed_at"`
}

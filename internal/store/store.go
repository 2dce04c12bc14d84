// Package store provides conversation history persistence.
package store

import (
	"context"
	"time"

	"github.com/ashureev/newsdesk/internal/domain"
)

// Repository holds the conversation history of each session.
type Repository interface {
	// History returns the confirmed turns of a session in insertion order.
	// An unknown session has an empty history.
	History(ctx context.Context, sessionKey string) (domain.History, error)

	// AppendExchange commits a user turn and the assistant reply atomically.
	AppendExchange(ctx context.Context, sessionKey string, user, assistant domain.Message) error

	// ClearHistory removes every turn of a session and returns how many were removed.
	ClearHistory(ctx context.Context, sessionKey string) (int64, error)

	// Touch refreshes the activity time of an existing session.
	Touch(ctx context.Context, sessionKey string) error

	// CleanupIdle removes sessions untouched for longer than ttl.
	CleanupIdle(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

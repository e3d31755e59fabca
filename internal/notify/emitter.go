// Package notify hands moderation events off to the notification subsystem.
// Delivery transport (push, email) is the emitter consumer's problem; the
// engine only constructs events and writes them exactly once per transition.
package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event kinds produced by the moderation engine.
const (
	KindAccountFlagged = "account_flagged"
	KindFlagExpired    = "flag_expired"
	KindFlagsCleared   = "flags_cleared"
)

// ModerationEvent is the payload delivered to the notification sink.
type ModerationEvent struct {
	UserID  int64          `json:"user_id"`
	Kind    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// Emitter delivers moderation events. Implementations own their retry policy;
// callers treat Create as fire-and-forget.
type Emitter interface {
	Create(ctx context.Context, event ModerationEvent) error
}

// PGEmitter writes events into the notifications table the clients poll.
type PGEmitter struct {
	pool *pgxpool.Pool
}

// NewPGEmitter constructs a PostgreSQL backed emitter.
func NewPGEmitter(pool *pgxpool.Pool) *PGEmitter {
	return &PGEmitter{pool: pool}
}

// Create persists the event.
func (e *PGEmitter) Create(ctx context.Context, event ModerationEvent) error {
	if e == nil || e.pool == nil {
		return errors.New("notify: emitter not initialised")
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	_, err = e.pool.Exec(ctx, `INSERT INTO notifications (user_id, type, message, data, created_at) VALUES ($1, $2, $3, $4, NOW())`, event.UserID, event.Kind, event.Message, data)
	return err
}

var _ Emitter = (*PGEmitter)(nil)

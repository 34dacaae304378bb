package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"cardtool-backend/internal/features/webhook/repository"
	"cardtool-backend/internal/platform/db"
)

const codeUniqueViolation = "23505"

type eventStore struct {
	pool *db.Pool
}

func NewEventStore(pool *db.Pool) repository.EventStore {
	return &eventStore{pool: pool}
}

func (s *eventStore) InsertEvent(ctx context.Context, provider, eventID string) (bool, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_events (provider, event_id) VALUES ($1, $2)`,
		provider, eventID)
	if err == nil {
		return true, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return false, nil
	}
	return false, fmt.Errorf("insert webhook event: %w", err)
}

func (s *eventStore) DeleteEvent(ctx context.Context, provider, eventID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM webhook_events WHERE provider = $1 AND event_id = $2`,
		provider, eventID)
	if err != nil {
		return fmt.Errorf("delete webhook event: %w", err)
	}
	return nil
}

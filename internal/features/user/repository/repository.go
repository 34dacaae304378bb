package repository

import (
	"context"
	"errors"
	"time"

	"cardtool-backend/internal/features/user/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository persists users. All durable state lives in Postgres; this
// layer holds nothing between calls.
type UserRepository interface {
	// Upsert creates the user or refreshes profile fields on login.
	Upsert(ctx context.Context, user *models.User) error
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	// SetVerificationStatus stamps verified_at when the status is terminal.
	SetVerificationStatus(ctx context.Context, telegramID int64, status string, verifiedAt *time.Time) error
}

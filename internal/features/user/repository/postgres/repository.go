package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"cardtool-backend/internal/features/user/models"
	"cardtool-backend/internal/features/user/repository"
	"cardtool-backend/internal/platform/db"
)

type postgresRepository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) repository.UserRepository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Upsert(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (telegram_id, username, first_name, last_name, photo_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			photo_url = EXCLUDED.photo_url,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.LastName, user.PhotoURL)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	const query = `
		SELECT u.telegram_id, u.username, u.first_name, u.last_name, u.photo_url,
		       u.role, u.verification_status, u.verified_at, u.referral_code,
		       COALESCE(w.balance_usdt, 0)::text,
		       u.created_at, u.updated_at
		FROM users u
		LEFT JOIN wallets w ON w.user_id = u.telegram_id
		WHERE u.telegram_id = $1
	`

	var (
		user       models.User
		balanceRaw string
	)
	err := r.pool.QueryRow(ctx, query, telegramID).Scan(
		&user.TelegramID, &user.Username, &user.FirstName, &user.LastName, &user.PhotoURL,
		&user.Role, &user.VerificationStatus, &user.VerifiedAt, &user.ReferralCode,
		&balanceRaw,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	balance, err := decimal.NewFromString(balanceRaw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balanceRaw, err)
	}
	user.BalanceUSDT = balance

	return &user, nil
}

func (r *postgresRepository) SetVerificationStatus(ctx context.Context, telegramID int64, status string, verifiedAt *time.Time) error {
	const query = `
		UPDATE users
		SET verification_status = $2, verified_at = $3, updated_at = NOW()
		WHERE telegram_id = $1
	`

	result, err := r.pool.Exec(ctx, query, telegramID, status, verifiedAt)
	if err != nil {
		return fmt.Errorf("failed to update verification status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"cardtool-backend/internal/features/wallet/models"
	"cardtool-backend/internal/features/wallet/repository"
	"cardtool-backend/internal/platform/db"
)

// SQLSTATE codes this layer cares about.
const (
	codeUndefinedFunction = "42883"
	codeRaisedException   = "P0001"
)

type postgresRepository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) repository.WalletRepository {
	return &postgresRepository{pool: pool}
}

// mapRPCError translates stored-procedure failures into repository errors.
// 42883 (undefined function) means the migration installing the RPC was
// never applied; callers surface that as an actionable operator message.
func mapRPCError(err error, rpc string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", rpc, err)
	}
	switch pgErr.Code {
	case codeUndefinedFunction:
		return fmt.Errorf("%s: %w", rpc, repository.ErrRPCMissing)
	case codeRaisedException:
		msg := strings.ToLower(pgErr.Message)
		if strings.Contains(msg, "insufficient") {
			return fmt.Errorf("%s: %w", rpc, repository.ErrInsufficientFunds)
		}
		if strings.Contains(msg, "recipient") || strings.Contains(msg, "not found") {
			return fmt.Errorf("%s: %w", rpc, repository.ErrRecipientNotFound)
		}
	}
	return fmt.Errorf("%s: %w", rpc, err)
}

func (r *postgresRepository) CreateTopup(ctx context.Context, userID int64, amount decimal.Decimal, method, orderID string) (int64, error) {
	var txID int64
	err := r.pool.QueryRow(ctx,
		`SELECT create_topup($1, $2::numeric, $3, $4)`,
		userID, amount.String(), method, orderID).Scan(&txID)
	if err != nil {
		return 0, mapRPCError(err, "create_topup")
	}
	return txID, nil
}

func (r *postgresRepository) CompleteTopupByOrderID(ctx context.Context, orderID string) (bool, error) {
	return r.flipTopupStatus(ctx, orderID, models.StatusCompleted)
}

func (r *postgresRepository) RejectTopupByOrderID(ctx context.Context, orderID string) (bool, error) {
	return r.flipTopupStatus(ctx, orderID, models.StatusRejected)
}

// flipTopupStatus moves a pending topup to a terminal status. The pending
// predicate makes redelivery a no-op: a transaction already completed or
// rejected matches zero rows. Balance movement happens in the database
// trigger on the status change, never here.
func (r *postgresRepository) flipTopupStatus(ctx context.Context, orderID, status string) (bool, error) {
	const query = `
		UPDATE transactions
		SET status = $2, updated_at = NOW()
		WHERE type = 'topup' AND status = 'pending' AND metadata->>'order_id' = $1
	`

	result, err := r.pool.Exec(ctx, query, orderID, status)
	if err != nil {
		return false, fmt.Errorf("failed to update topup status: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *postgresRepository) CreateInternalTransfer(ctx context.Context, fromID int64, toUsername string, amount decimal.Decimal) (int64, error) {
	var txID int64
	err := r.pool.QueryRow(ctx,
		`SELECT create_internal_transfer($1, $2, $3::numeric)`,
		fromID, toUsername, amount.String()).Scan(&txID)
	if err != nil {
		return 0, mapRPCError(err, "create_internal_transfer")
	}
	return txID, nil
}

func (r *postgresRepository) CreateWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, address string) (int64, error) {
	var txID int64
	err := r.pool.QueryRow(ctx,
		`SELECT create_withdrawal($1, $2::numeric, $3)`,
		userID, amount.String(), address).Scan(&txID)
	if err != nil {
		return 0, mapRPCError(err, "create_withdrawal")
	}
	return txID, nil
}

func (r *postgresRepository) SetInviter(ctx context.Context, userID int64, referralCode string) error {
	if _, err := r.pool.Exec(ctx, `SELECT referral_set_inviter($1, $2)`, userID, referralCode); err != nil {
		return mapRPCError(err, "referral_set_inviter")
	}
	return nil
}

func (r *postgresRepository) ClaimReferralRewards(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var claimedRaw string
	err := r.pool.QueryRow(ctx, `SELECT referral_claim_rewards($1)::text`, userID).Scan(&claimedRaw)
	if err != nil {
		return decimal.Zero, mapRPCError(err, "referral_claim_rewards")
	}
	claimed, err := decimal.NewFromString(claimedRaw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse claimed amount %q: %w", claimedRaw, err)
	}
	return claimed, nil
}

func (r *postgresRepository) ReferralStats(ctx context.Context, userID int64) (*models.ReferralStats, error) {
	const query = `
		SELECT u.referral_code,
		       (SELECT COUNT(*) FROM users WHERE inviter_id = u.telegram_id),
		       COALESCE((SELECT SUM(amount_usdt) FROM transactions
		                 WHERE user_id = u.telegram_id AND type = 'referral_reward' AND status = 'pending'), 0)::text,
		       COALESCE((SELECT SUM(amount_usdt) FROM transactions
		                 WHERE user_id = u.telegram_id AND type = 'referral_reward' AND status <> 'rejected'), 0)::text
		FROM users u
		WHERE u.telegram_id = $1
	`

	var stats models.ReferralStats
	var claimableRaw, earnedRaw string
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&stats.Code, &stats.InvitedCount, &claimableRaw, &earnedRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("referral stats: user %d not found", userID)
		}
		return nil, fmt.Errorf("failed to load referral stats: %w", err)
	}
	if stats.ClaimableUSDT, err = decimal.NewFromString(claimableRaw); err != nil {
		return nil, fmt.Errorf("failed to parse claimable amount: %w", err)
	}
	if stats.TotalEarnedUSDT, err = decimal.NewFromString(earnedRaw); err != nil {
		return nil, fmt.Errorf("failed to parse earned amount: %w", err)
	}
	return &stats, nil
}

func (r *postgresRepository) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	const query = `
		SELECT id, user_id, type, amount_usdt::text, status, metadata, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *postgresRepository) PendingWithdrawals(ctx context.Context) ([]*models.Transaction, error) {
	const query = `
		SELECT id, user_id, type, amount_usdt::text, status, metadata, created_at
		FROM transactions
		WHERE type = 'withdrawal' AND status = 'pending'
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (r *postgresRepository) ReviewWithdrawal(ctx context.Context, txID int64, approve bool, adminID int64) (string, error) {
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT admin_review_withdrawal($1, $2, $3)`,
		txID, approve, adminID).Scan(&status)
	if err != nil {
		return "", mapRPCError(err, "admin_review_withdrawal")
	}
	return status, nil
}

func scanTransactions(rows pgx.Rows) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	for rows.Next() {
		var (
			tx        models.Transaction
			amountRaw string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &amountRaw, &tx.Status, &tx.Metadata, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		amount, err := decimal.NewFromString(amountRaw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amountRaw, err)
		}
		tx.AmountUSDT = amount
		transactions = append(transactions, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

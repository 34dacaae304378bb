package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"cardtool-backend/internal/features/card/models"
	"cardtool-backend/internal/features/card/repository"
	"cardtool-backend/internal/platform/db"
)

const (
	codeUndefinedFunction = "42883"
	codeRaisedException   = "P0001"
)

type postgresRepository struct {
	pool *db.Pool
}

func NewCardRepository(pool *db.Pool) repository.CardRepository {
	return &postgresRepository{pool: pool}
}

func mapRPCError(err error, rpc string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", rpc, err)
	}
	switch pgErr.Code {
	case codeUndefinedFunction:
		return fmt.Errorf("%s: %w", rpc, repository.ErrRPCMissing)
	case codeRaisedException:
		if strings.Contains(strings.ToLower(pgErr.Message), "insufficient") {
			return fmt.Errorf("%s: %w", rpc, repository.ErrInsufficientFunds)
		}
	}
	return fmt.Errorf("%s: %w", rpc, err)
}

func (r *postgresRepository) InsertCard(ctx context.Context, card *models.Card) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cards (user_id, provider_card_id, provider_cardholder_id, status, last4, brand)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		card.UserID, card.ProviderCardID, card.ProviderCardholderID, card.Status, card.Last4, card.Brand,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert card: %w", err)
	}
	return id, nil
}

const cardColumns = `id, user_id, provider_card_id, provider_cardholder_id, status, last4, brand, created_at`

func (r *postgresRepository) scanCard(row pgx.Row) (*models.Card, error) {
	var card models.Card
	err := row.Scan(&card.ID, &card.UserID, &card.ProviderCardID, &card.ProviderCardholderID,
		&card.Status, &card.Last4, &card.Brand, &card.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan card: %w", err)
	}
	return &card, nil
}

// CurrentCard returns the user's newest non-blocked card.
func (r *postgresRepository) CurrentCard(ctx context.Context, userID int64) (*models.Card, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM cards
		 WHERE user_id = $1 AND status <> $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID, models.CardStatusBlocked)
	return r.scanCard(row)
}

func (r *postgresRepository) CardByProviderID(ctx context.Context, providerCardID string) (*models.Card, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE provider_card_id = $1`, providerCardID)
	return r.scanCard(row)
}

func (r *postgresRepository) SetCardStatus(ctx context.Context, cardID int64, status string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cards SET status = $2, updated_at = now() WHERE id = $1`, cardID, status)
	if err != nil {
		return fmt.Errorf("set card status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrCardNotFound
	}
	return nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Card, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		card, err := r.scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func (r *postgresRepository) InsertSaga(ctx context.Context, userID int64, amount decimal.Decimal) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO card_purchase_sagas (user_id, amount_usdt, state)
		 VALUES ($1, $2::numeric, $3)
		 RETURNING id`,
		userID, amount.String(), models.SagaDebited).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert saga: %w", err)
	}
	return id, nil
}

func (r *postgresRepository) SetSagaState(ctx context.Context, sagaID int64, state string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE card_purchase_sagas SET state = $2, updated_at = now() WHERE id = $1`, sagaID, state)
	if err != nil {
		return fmt.Errorf("set saga state: %w", err)
	}
	return nil
}

func (r *postgresRepository) AttachSagaProvider(ctx context.Context, sagaID int64, cardholderID, cardID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE card_purchase_sagas
		 SET provider_cardholder_id = $2, provider_card_id = $3, updated_at = now()
		 WHERE id = $1`,
		sagaID, cardholderID, cardID)
	if err != nil {
		return fmt.Errorf("attach saga provider: %w", err)
	}
	return nil
}

func (r *postgresRepository) StuckSagas(ctx context.Context, olderThan time.Time, limit int) ([]*models.PurchaseSaga, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount_usdt::text, state,
		        COALESCE(provider_cardholder_id, ''), COALESCE(provider_card_id, ''),
		        created_at, updated_at
		 FROM card_purchase_sagas
		 WHERE state IN ($1, $2) AND updated_at < $3
		 ORDER BY updated_at ASC
		 LIMIT $4`,
		models.SagaIssuing, models.SagaRefundPending, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("stuck sagas: %w", err)
	}
	defer rows.Close()

	var sagas []*models.PurchaseSaga
	for rows.Next() {
		var saga models.PurchaseSaga
		var amountRaw string
		if err := rows.Scan(&saga.ID, &saga.UserID, &amountRaw, &saga.State,
			&saga.ProviderCardholderID, &saga.ProviderCardID,
			&saga.CreatedAt, &saga.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan saga: %w", err)
		}
		amount, err := decimal.NewFromString(amountRaw)
		if err != nil {
			return nil, fmt.Errorf("saga amount: %w", err)
		}
		saga.AmountUSDT = amount
		sagas = append(sagas, &saga)
	}
	return sagas, rows.Err()
}

func (r *postgresRepository) DeductBalanceForCard(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if _, err := r.pool.Exec(ctx,
		`SELECT deduct_balance_for_card($1, $2::numeric)`, userID, amount.String()); err != nil {
		return mapRPCError(err, "deduct_balance_for_card")
	}
	return nil
}

func (r *postgresRepository) RefundCardPurchase(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if _, err := r.pool.Exec(ctx,
		`SELECT refund_card_purchase($1, $2::numeric)`, userID, amount.String()); err != nil {
		return mapRPCError(err, "refund_card_purchase")
	}
	return nil
}

func (r *postgresRepository) CheckCardBalance(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx,
		`SELECT check_card_balance($1, $2::numeric)`, userID, amount.String()).Scan(&ok); err != nil {
		return false, mapRPCError(err, "check_card_balance")
	}
	return ok, nil
}

func (r *postgresRepository) RecordCardTransaction(ctx context.Context, userID int64, amount decimal.Decimal, providerTxID string) error {
	if _, err := r.pool.Exec(ctx,
		`SELECT record_card_transaction($1, $2::numeric, $3)`, userID, amount.String(), providerTxID); err != nil {
		return mapRPCError(err, "record_card_transaction")
	}
	return nil
}

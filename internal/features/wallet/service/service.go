package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	apperrors "cardtool-backend/internal/common/errors"
	"cardtool-backend/internal/features/wallet/models"
	"cardtool-backend/internal/features/wallet/repository"
)

// Withdrawal limits. The admin review re-checks the balance; these only
// bound what enters the queue.
var (
	minWithdrawalUSDT = decimal.NewFromInt(10)
)

type WalletService interface {
	Topup(ctx context.Context, userID int64, amount decimal.Decimal, method, orderID string) (int64, error)
	Transfer(ctx context.Context, fromID int64, toUsername string, amount decimal.Decimal) (int64, error)
	Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, address string) (int64, error)
	SetInviter(ctx context.Context, userID int64, referralCode string) error
	ClaimReferralRewards(ctx context.Context, userID int64) (decimal.Decimal, error)
	ReferralStats(ctx context.Context, userID int64) (*models.ReferralStats, error)
	Transactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error)

	PendingWithdrawals(ctx context.Context) ([]*models.Transaction, error)
	ReviewWithdrawal(ctx context.Context, txID int64, approve bool, adminID int64) (string, error)
}

type walletService struct {
	repo repository.WalletRepository
}

func NewWalletService(repo repository.WalletRepository) WalletService {
	return &walletService{repo: repo}
}

func (s *walletService) Topup(ctx context.Context, userID int64, amount decimal.Decimal, method, orderID string) (int64, error) {
	if amount.Sign() <= 0 {
		return 0, apperrors.NewValidation("amount_usdt", "must be positive")
	}
	txID, err := s.repo.CreateTopup(ctx, userID, amount, method, orderID)
	if err != nil {
		return 0, mapLedgerError(err, "create_topup")
	}
	return txID, nil
}

func (s *walletService) Transfer(ctx context.Context, fromID int64, toUsername string, amount decimal.Decimal) (int64, error) {
	if amount.Sign() <= 0 {
		return 0, apperrors.NewValidation("amount_usdt", "must be positive")
	}
	if toUsername == "" {
		return 0, apperrors.NewValidation("to_username", "must not be empty")
	}

	txID, err := s.repo.CreateInternalTransfer(ctx, fromID, toUsername, amount)
	if err != nil {
		return 0, mapLedgerError(err, "create_internal_transfer")
	}
	return txID, nil
}

func (s *walletService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, address string) (int64, error) {
	if amount.Cmp(minWithdrawalUSDT) < 0 {
		return 0, apperrors.NewValidation("amount_usdt", "below minimum withdrawal of "+minWithdrawalUSDT.String())
	}
	if address == "" {
		return 0, apperrors.NewValidation("address", "must not be empty")
	}

	txID, err := s.repo.CreateWithdrawal(ctx, userID, amount, address)
	if err != nil {
		return 0, mapLedgerError(err, "create_withdrawal")
	}
	return txID, nil
}

func (s *walletService) SetInviter(ctx context.Context, userID int64, referralCode string) error {
	if referralCode == "" {
		return apperrors.NewValidation("referral_code", "must not be empty")
	}
	if err := s.repo.SetInviter(ctx, userID, referralCode); err != nil {
		return mapLedgerError(err, "referral_set_inviter")
	}
	return nil
}

func (s *walletService) ClaimReferralRewards(ctx context.Context, userID int64) (decimal.Decimal, error) {
	claimed, err := s.repo.ClaimReferralRewards(ctx, userID)
	if err != nil {
		return decimal.Zero, mapLedgerError(err, "referral_claim_rewards")
	}
	return claimed, nil
}

func (s *walletService) ReferralStats(ctx context.Context, userID int64) (*models.ReferralStats, error) {
	stats, err := s.repo.ReferralStats(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load referral stats")
	}
	return stats, nil
}

func (s *walletService) Transactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	txs, err := s.repo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to list transactions")
	}
	return txs, nil
}

func (s *walletService) PendingWithdrawals(ctx context.Context) ([]*models.Transaction, error) {
	txs, err := s.repo.PendingWithdrawals(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to list withdrawals")
	}
	return txs, nil
}

func (s *walletService) ReviewWithdrawal(ctx context.Context, txID int64, approve bool, adminID int64) (string, error) {
	status, err := s.repo.ReviewWithdrawal(ctx, txID, approve, adminID)
	if err != nil {
		return "", mapLedgerError(err, "admin_review_withdrawal")
	}
	return status, nil
}

// mapLedgerError turns repository sentinels into the typed errors the HTTP
// layer knows how to render.
func mapLedgerError(err error, rpc string) error {
	switch {
	case errors.Is(err, repository.ErrRPCMissing):
		return apperrors.NewRPCMissing(rpc, err)
	case errors.Is(err, repository.ErrInsufficientFunds):
		return apperrors.New(apperrors.ErrCodeInsufficientFunds, "insufficient balance")
	case errors.Is(err, repository.ErrRecipientNotFound):
		return apperrors.NewNotFound("recipient")
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "ledger operation failed")
	}
}

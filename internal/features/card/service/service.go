package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "cardtool-backend/internal/common/errors"
	"cardtool-backend/internal/common/logger"
	"cardtool-backend/internal/features/card/issuing"
	"cardtool-backend/internal/features/card/models"
	"cardtool-backend/internal/features/card/repository"
	userservice "cardtool-backend/internal/features/user/service"
)

// Authorization decline reasons returned to the issuer webhook.
const (
	DeclineCardInactive      = "card_inactive_or_missing"
	DeclineInsufficientFunds = "insufficient_funds"
)

type CardService interface {
	// Purchase debits the card price and provisions a virtual card. The debit
	// and the provider calls are not atomic: a persisted saga row tracks
	// progress so a failed or crashed purchase can be compensated.
	Purchase(ctx context.Context, userID int64) (*models.Card, error)
	Details(ctx context.Context, userID int64) (*models.Details, error)
	SetStatus(ctx context.Context, userID int64, action string) (*models.Card, error)
	List(ctx context.Context, userID int64) ([]*models.Card, error)

	// AuthorizeSpend decides a real-time issuing authorization. A missing or
	// non-active card declines regardless of balance.
	AuthorizeSpend(ctx context.Context, providerCardID string, amount decimal.Decimal) (bool, string, error)
	// RecordSpend books a captured issuing transaction against the ledger.
	RecordSpend(ctx context.Context, providerCardID string, amount decimal.Decimal, providerTxID string) error
}

type cardService struct {
	repo   repository.CardRepository
	issuer issuing.Issuer
	users  userservice.UserService
	price  decimal.Decimal
}

func NewCardService(repo repository.CardRepository, issuer issuing.Issuer, users userservice.UserService, price decimal.Decimal) CardService {
	return &cardService{repo: repo, issuer: issuer, users: users, price: price}
}

func (s *cardService) Purchase(ctx context.Context, userID int64) (*models.Card, error) {
	user, err := s.users.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsApproved() {
		return nil, apperrors.New(apperrors.ErrCodeKYCRequired, "identity verification required")
	}
	if existing, err := s.repo.CurrentCard(ctx, userID); err == nil && existing != nil {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "card already issued")
	} else if err != nil && !errors.Is(err, repository.ErrCardNotFound) {
		return nil, err
	}

	if err := s.repo.DeductBalanceForCard(ctx, userID, s.price); err != nil {
		return nil, mapLedgerError(err, "deduct_balance_for_card")
	}
	sagaID, err := s.repo.InsertSaga(ctx, userID, s.price)
	if err != nil {
		// The debit went through but the saga row did not; without the row the
		// reconciler cannot see this purchase, so compensate immediately.
		s.compensate(ctx, 0, userID, s.price)
		return nil, err
	}

	card, err := s.issueCard(ctx, sagaID, user.TelegramID, displayName(user.FirstName, user.LastName, user.Username))
	if err != nil {
		s.compensate(ctx, sagaID, userID, s.price)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternalAPI, "card provider unavailable")
	}
	return card, nil
}

func (s *cardService) issueCard(ctx context.Context, sagaID, userID int64, holderName string) (*models.Card, error) {
	if err := s.repo.SetSagaState(ctx, sagaID, models.SagaIssuing); err != nil {
		return nil, err
	}

	cardholderID, err := s.issuer.CreateCardholder(ctx, holderName, strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, err
	}
	issued, err := s.issuer.CreateCard(ctx, cardholderID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AttachSagaProvider(ctx, sagaID, issued.CardholderID, issued.CardID); err != nil {
		return nil, err
	}

	card := &models.Card{
		UserID:               userID,
		ProviderCardID:       issued.CardID,
		ProviderCardholderID: issued.CardholderID,
		Status:               models.CardStatusActive,
		Last4:                issued.Last4,
		Brand:                issued.Brand,
	}
	cardID, err := s.repo.InsertCard(ctx, card)
	if err != nil {
		return nil, err
	}
	card.ID = cardID

	if err := s.repo.SetSagaState(ctx, sagaID, models.SagaIssued); err != nil {
		return nil, err
	}
	return card, nil
}

// compensate refunds a debited purchase. A failed refund leaves the saga in
// refund_pending so the reconciler sweep retries it; when sagaID is zero
// there is no saga row and the failure can only be logged.
func (s *cardService) compensate(ctx context.Context, sagaID, userID int64, amount decimal.Decimal) {
	if sagaID != 0 {
		if err := s.repo.SetSagaState(ctx, sagaID, models.SagaRefundPending); err != nil {
			logger.Error().Err(err).Int64("saga_id", sagaID).Msg("failed to mark saga refund_pending")
		}
	}
	if err := s.repo.RefundCardPurchase(ctx, userID, amount); err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Str("amount", amount.String()).
			Msg("card purchase refund failed, left for reconciler")
		return
	}
	if sagaID != 0 {
		if err := s.repo.SetSagaState(ctx, sagaID, models.SagaRefunded); err != nil {
			logger.Error().Err(err).Int64("saga_id", sagaID).Msg("failed to mark saga refunded")
		}
	}
}

func (s *cardService) Details(ctx context.Context, userID int64) (*models.Details, error) {
	card, err := s.currentCard(ctx, userID)
	if err != nil {
		return nil, err
	}
	details, err := s.issuer.CardDetails(ctx, card.ProviderCardID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternalAPI, "card provider unavailable")
	}
	return details, nil
}

func (s *cardService) SetStatus(ctx context.Context, userID int64, action string) (*models.Card, error) {
	card, err := s.currentCard(ctx, userID)
	if err != nil {
		return nil, err
	}
	if card.Status == models.CardStatusBlocked {
		return nil, apperrors.New(apperrors.ErrCodeCardBlocked, "card is blocked")
	}

	var active bool
	var status string
	switch action {
	case "freeze":
		active, status = false, models.CardStatusFrozen
	case "unfreeze":
		active, status = true, models.CardStatusActive
	default:
		return nil, apperrors.NewValidation("action", "must be freeze or unfreeze")
	}

	if err := s.issuer.SetCardActive(ctx, card.ProviderCardID, active); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExternalAPI, "card provider unavailable")
	}
	if err := s.repo.SetCardStatus(ctx, card.ID, status); err != nil {
		return nil, err
	}
	card.Status = status
	return card, nil
}

func (s *cardService) List(ctx context.Context, userID int64) ([]*models.Card, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *cardService) AuthorizeSpend(ctx context.Context, providerCardID string, amount decimal.Decimal) (bool, string, error) {
	card, err := s.repo.CardByProviderID(ctx, providerCardID)
	if errors.Is(err, repository.ErrCardNotFound) {
		return false, DeclineCardInactive, nil
	}
	if err != nil {
		return false, "", err
	}
	if !card.Spendable() {
		return false, DeclineCardInactive, nil
	}

	ok, err := s.repo.CheckCardBalance(ctx, card.UserID, amount)
	if err != nil {
		return false, "", mapLedgerError(err, "check_card_balance")
	}
	if !ok {
		return false, DeclineInsufficientFunds, nil
	}
	return true, "", nil
}

func (s *cardService) RecordSpend(ctx context.Context, providerCardID string, amount decimal.Decimal, providerTxID string) error {
	card, err := s.repo.CardByProviderID(ctx, providerCardID)
	if err != nil {
		return err
	}
	if err := s.repo.RecordCardTransaction(ctx, card.UserID, amount, providerTxID); err != nil {
		return mapLedgerError(err, "record_card_transaction")
	}
	return nil
}

func (s *cardService) currentCard(ctx context.Context, userID int64) (*models.Card, error) {
	card, err := s.repo.CurrentCard(ctx, userID)
	if errors.Is(err, repository.ErrCardNotFound) {
		return nil, apperrors.NewNotFound("card")
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

func displayName(first, last, username string) string {
	name := strings.TrimSpace(first + " " + last)
	if name != "" {
		return name
	}
	if username != "" {
		return username
	}
	return "Cardholder"
}

func mapLedgerError(err error, rpc string) error {
	switch {
	case errors.Is(err, repository.ErrRPCMissing):
		return apperrors.NewRPCMissing(rpc, err)
	case errors.Is(err, repository.ErrInsufficientFunds):
		return apperrors.New(apperrors.ErrCodeInsufficientFunds, "insufficient balance")
	default:
		return fmt.Errorf("%s: %w", rpc, err)
	}
}

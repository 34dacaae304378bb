package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardtool-backend/internal/auth"
	apperrors "cardtool-backend/internal/common/errors"
	"cardtool-backend/internal/features/card/issuing"
	"cardtool-backend/internal/features/card/models"
	"cardtool-backend/internal/features/card/repository"
	usermodels "cardtool-backend/internal/features/user/models"
)

var cardPrice = decimal.NewFromInt(10)

type refundCall struct {
	userID int64
	amount decimal.Decimal
}

type fakeCardRepo struct {
	repository.CardRepository

	currentCard *models.Card
	byProvider  map[string]*models.Card

	deductErr    error
	deductCalls  int
	refundErr    error
	refundCalls  []refundCall
	balanceOK    bool
	balanceCalls int
	recordCalls  int

	sagaStates    []string
	insertedCards []*models.Card
	stuck         []*models.PurchaseSaga
}

func (f *fakeCardRepo) InsertCard(_ context.Context, card *models.Card) (int64, error) {
	f.insertedCards = append(f.insertedCards, card)
	return int64(len(f.insertedCards)), nil
}

func (f *fakeCardRepo) CurrentCard(context.Context, int64) (*models.Card, error) {
	if f.currentCard == nil {
		return nil, repository.ErrCardNotFound
	}
	return f.currentCard, nil
}

func (f *fakeCardRepo) CardByProviderID(_ context.Context, providerCardID string) (*models.Card, error) {
	card, ok := f.byProvider[providerCardID]
	if !ok {
		return nil, repository.ErrCardNotFound
	}
	return card, nil
}

func (f *fakeCardRepo) SetCardStatus(_ context.Context, _ int64, status string) error {
	if f.currentCard != nil {
		f.currentCard.Status = status
	}
	return nil
}

func (f *fakeCardRepo) InsertSaga(context.Context, int64, decimal.Decimal) (int64, error) {
	f.sagaStates = append(f.sagaStates, models.SagaDebited)
	return 1, nil
}

func (f *fakeCardRepo) SetSagaState(_ context.Context, _ int64, state string) error {
	f.sagaStates = append(f.sagaStates, state)
	return nil
}

func (f *fakeCardRepo) AttachSagaProvider(context.Context, int64, string, string) error {
	return nil
}

func (f *fakeCardRepo) StuckSagas(context.Context, time.Time, int) ([]*models.PurchaseSaga, error) {
	return f.stuck, nil
}

func (f *fakeCardRepo) DeductBalanceForCard(context.Context, int64, decimal.Decimal) error {
	f.deductCalls++
	return f.deductErr
}

func (f *fakeCardRepo) RefundCardPurchase(_ context.Context, userID int64, amount decimal.Decimal) error {
	f.refundCalls = append(f.refundCalls, refundCall{userID: userID, amount: amount})
	return f.refundErr
}

func (f *fakeCardRepo) CheckCardBalance(context.Context, int64, decimal.Decimal) (bool, error) {
	f.balanceCalls++
	return f.balanceOK, nil
}

func (f *fakeCardRepo) RecordCardTransaction(context.Context, int64, decimal.Decimal, string) error {
	f.recordCalls++
	return nil
}

type fakeIssuer struct {
	cardholderErr   error
	cardErr         error
	cardholderCalls int
	cardCalls       int
	statusCalls     int
	lastActive      bool
	detailsCalls    int
}

func (f *fakeIssuer) CreateCardholder(context.Context, string, string) (string, error) {
	f.cardholderCalls++
	if f.cardholderErr != nil {
		return "", f.cardholderErr
	}
	return "ich_1", nil
}

func (f *fakeIssuer) CreateCard(_ context.Context, cardholderID string) (*issuing.IssuedCard, error) {
	f.cardCalls++
	if f.cardErr != nil {
		return nil, f.cardErr
	}
	return &issuing.IssuedCard{CardID: "ic_1", CardholderID: cardholderID, Last4: "4242", Brand: "Visa"}, nil
}

func (f *fakeIssuer) SetCardActive(_ context.Context, _ string, active bool) error {
	f.statusCalls++
	f.lastActive = active
	return nil
}

func (f *fakeIssuer) CardDetails(context.Context, string) (*models.Details, error) {
	f.detailsCalls++
	return &models.Details{Number: "4242424242424242", CVC: "123", ExpMonth: 12, ExpYear: 2030, Last4: "4242"}, nil
}

type fakeUsers struct {
	user *usermodels.User
}

func (f *fakeUsers) Login(context.Context, *auth.InitData) (*usermodels.User, error) {
	return f.user, nil
}
func (f *fakeUsers) LoginByID(context.Context, int64) (*usermodels.User, error) {
	return f.user, nil
}
func (f *fakeUsers) Me(context.Context, int64) (*usermodels.User, error) { return f.user, nil }
func (f *fakeUsers) Role(context.Context, int64) (string, error)         { return f.user.Role, nil }
func (f *fakeUsers) SetVerification(context.Context, int64, string, *time.Time) error {
	return nil
}

func approvedUser(id int64) *usermodels.User {
	return &usermodels.User{TelegramID: id, FirstName: "Vladimir", VerificationStatus: usermodels.VerificationApproved}
}

func TestPurchase_RequiresApprovedKYC(t *testing.T) {
	repo := &fakeCardRepo{}
	issuer := &fakeIssuer{}
	users := &fakeUsers{user: &usermodels.User{TelegramID: 1, VerificationStatus: usermodels.VerificationPending}}

	_, err := NewCardService(repo, issuer, users, cardPrice).Purchase(context.Background(), 1)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeKYCRequired, appErr.Code)
	assert.Zero(t, repo.deductCalls)
	assert.Zero(t, issuer.cardholderCalls)
}

func TestPurchase_HappyPath(t *testing.T) {
	repo := &fakeCardRepo{}
	issuer := &fakeIssuer{}
	users := &fakeUsers{user: approvedUser(279058397)}

	card, err := NewCardService(repo, issuer, users, cardPrice).Purchase(context.Background(), 279058397)
	require.NoError(t, err)
	assert.Equal(t, "4242", card.Last4)
	assert.Equal(t, models.CardStatusActive, card.Status)

	assert.Equal(t, 1, repo.deductCalls)
	assert.Empty(t, repo.refundCalls)
	assert.Equal(t,
		[]string{models.SagaDebited, models.SagaIssuing, models.SagaIssued},
		repo.sagaStates)
}

func TestPurchase_ProviderFailureRefundsSameUserAndAmount(t *testing.T) {
	repo := &fakeCardRepo{}
	issuer := &fakeIssuer{cardErr: errors.New("stripe: rate limited")}
	users := &fakeUsers{user: approvedUser(279058397)}

	_, err := NewCardService(repo, issuer, users, cardPrice).Purchase(context.Background(), 279058397)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeExternalAPI, appErr.Code)

	require.Len(t, repo.refundCalls, 1)
	assert.Equal(t, int64(279058397), repo.refundCalls[0].userID)
	assert.True(t, cardPrice.Equal(repo.refundCalls[0].amount))
	assert.Empty(t, repo.insertedCards)
	assert.Equal(t,
		[]string{models.SagaDebited, models.SagaIssuing, models.SagaRefundPending, models.SagaRefunded},
		repo.sagaStates)
}

func TestPurchase_RefundFailureStaysRetryable(t *testing.T) {
	repo := &fakeCardRepo{refundErr: errors.New("db down")}
	issuer := &fakeIssuer{cardholderErr: errors.New("stripe: 500")}
	users := &fakeUsers{user: approvedUser(1)}

	_, err := NewCardService(repo, issuer, users, cardPrice).Purchase(context.Background(), 1)
	require.Error(t, err)
	require.Len(t, repo.refundCalls, 1)

	// refund_pending is the last transition: the sweep still sees the saga
	// and retries the refund on the next pass.
	assert.Equal(t,
		[]string{models.SagaDebited, models.SagaIssuing, models.SagaRefundPending},
		repo.sagaStates)

	repo.refundErr = nil
	repo.stuck = []*models.PurchaseSaga{
		{ID: 1, UserID: 1, AmountUSDT: cardPrice, State: models.SagaRefundPending},
	}
	NewReconciler(repo, time.Minute, 10*time.Minute).Sweep(context.Background())

	require.Len(t, repo.refundCalls, 2)
	assert.Equal(t, models.SagaRefunded, repo.sagaStates[len(repo.sagaStates)-1])
}

func TestPurchase_InsufficientFunds(t *testing.T) {
	repo := &fakeCardRepo{deductErr: repository.ErrInsufficientFunds}
	issuer := &fakeIssuer{}
	users := &fakeUsers{user: approvedUser(1)}

	_, err := NewCardService(repo, issuer, users, cardPrice).Purchase(context.Background(), 1)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeInsufficientFunds, appErr.Code)
	assert.Zero(t, issuer.cardholderCalls)
}

func TestPurchase_ExistingCardRejected(t *testing.T) {
	repo := &fakeCardRepo{currentCard: &models.Card{ID: 5, Status: models.CardStatusActive}}
	users := &fakeUsers{user: approvedUser(1)}

	_, err := NewCardService(repo, &fakeIssuer{}, users, cardPrice).Purchase(context.Background(), 1)
	require.Error(t, err)
	assert.Zero(t, repo.deductCalls)
}

func TestSetStatus_BlockedCardUntouchable(t *testing.T) {
	repo := &fakeCardRepo{currentCard: &models.Card{ID: 5, Status: models.CardStatusBlocked}}
	issuer := &fakeIssuer{}
	users := &fakeUsers{user: approvedUser(1)}

	for _, action := range []string{"freeze", "unfreeze"} {
		_, err := NewCardService(repo, issuer, users, cardPrice).SetStatus(context.Background(), 1, action)
		require.Error(t, err)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeCardBlocked, appErr.Code)
	}
	assert.Zero(t, issuer.statusCalls)
}

func TestSetStatus_FreezeUnfreeze(t *testing.T) {
	repo := &fakeCardRepo{currentCard: &models.Card{ID: 5, ProviderCardID: "ic_1", Status: models.CardStatusActive}}
	issuer := &fakeIssuer{}
	svc := NewCardService(repo, issuer, &fakeUsers{user: approvedUser(1)}, cardPrice)

	card, err := svc.SetStatus(context.Background(), 1, "freeze")
	require.NoError(t, err)
	assert.Equal(t, models.CardStatusFrozen, card.Status)
	assert.False(t, issuer.lastActive)

	card, err = svc.SetStatus(context.Background(), 1, "unfreeze")
	require.NoError(t, err)
	assert.Equal(t, models.CardStatusActive, card.Status)
	assert.True(t, issuer.lastActive)
}

func TestAuthorizeSpend_BlockedOrMissingCardDeclines(t *testing.T) {
	repo := &fakeCardRepo{
		balanceOK: true,
		byProvider: map[string]*models.Card{
			"ic_frozen": {ID: 1, UserID: 1, Status: models.CardStatusFrozen},
		},
	}
	svc := NewCardService(repo, &fakeIssuer{}, &fakeUsers{user: approvedUser(1)}, cardPrice)

	// Unknown provider card id.
	approved, reason, err := svc.AuthorizeSpend(context.Background(), "ic_unknown", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.False(t, approved)
	assert.Equal(t, DeclineCardInactive, reason)

	// Non-active card declines before the balance is even consulted.
	approved, reason, err = svc.AuthorizeSpend(context.Background(), "ic_frozen", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.False(t, approved)
	assert.Equal(t, DeclineCardInactive, reason)
	assert.Zero(t, repo.balanceCalls)
}

func TestAuthorizeSpend_BalanceDecision(t *testing.T) {
	repo := &fakeCardRepo{
		byProvider: map[string]*models.Card{
			"ic_1": {ID: 1, UserID: 7, Status: models.CardStatusActive},
		},
	}
	svc := NewCardService(repo, &fakeIssuer{}, &fakeUsers{user: approvedUser(7)}, cardPrice)

	approved, reason, err := svc.AuthorizeSpend(context.Background(), "ic_1", decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.False(t, approved)
	assert.Equal(t, DeclineInsufficientFunds, reason)

	repo.balanceOK = true
	approved, reason, err = svc.AuthorizeSpend(context.Background(), "ic_1", decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.True(t, approved)
	assert.Empty(t, reason)
}

func TestReconciler_DrivesStuckSagaToRefunded(t *testing.T) {
	repo := &fakeCardRepo{
		stuck: []*models.PurchaseSaga{
			{ID: 9, UserID: 279058397, AmountUSDT: cardPrice, State: models.SagaIssuing},
		},
	}

	NewReconciler(repo, time.Minute, 10*time.Minute).Sweep(context.Background())

	require.Len(t, repo.refundCalls, 1)
	assert.Equal(t, int64(279058397), repo.refundCalls[0].userID)
	assert.True(t, cardPrice.Equal(repo.refundCalls[0].amount))
	assert.Equal(t, []string{models.SagaRefundPending, models.SagaRefunded}, repo.sagaStates)
}

func TestReconciler_RefundPendingRetries(t *testing.T) {
	repo := &fakeCardRepo{
		refundErr: errors.New("still down"),
		stuck: []*models.PurchaseSaga{
			{ID: 9, UserID: 1, AmountUSDT: cardPrice, State: models.SagaRefundPending},
		},
	}

	NewReconciler(repo, time.Minute, 10*time.Minute).Sweep(context.Background())

	require.Len(t, repo.refundCalls, 1)
	// Stays refund_pending for the next sweep.
	assert.Empty(t, repo.sagaStates)
}

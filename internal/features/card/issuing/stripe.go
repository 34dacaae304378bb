package issuing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"cardtool-backend/internal/features/card/models"
)

// IssuedCard is what the provider hands back after creating a virtual card.
type IssuedCard struct {
	CardID       string
	CardholderID string
	Last4        string
	Brand        string
}

// Issuer abstracts the card provider for the purchase saga and the status
// toggles.
type Issuer interface {
	CreateCardholder(ctx context.Context, name, externalID string) (string, error)
	CreateCard(ctx context.Context, cardholderID string) (*IssuedCard, error)
	SetCardActive(ctx context.Context, providerCardID string, active bool) error
	CardDetails(ctx context.Context, providerCardID string) (*models.Details, error)
}

type stripeIssuer struct {
	api *client.API
}

func NewStripeIssuer(secretKey string) Issuer {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &stripeIssuer{api: api}
}

func (s *stripeIssuer) CreateCardholder(ctx context.Context, name, externalID string) (string, error) {
	params := &stripe.IssuingCardholderParams{
		Name: stripe.String(name),
		Type: stripe.String(string(stripe.IssuingCardholderTypeIndividual)),
	}
	params.Context = ctx
	params.AddMetadata("telegram_id", externalID)

	cardholder, err := s.api.IssuingCardholders.New(params)
	if err != nil {
		return "", fmt.Errorf("create cardholder: %w", err)
	}
	return cardholder.ID, nil
}

func (s *stripeIssuer) CreateCard(ctx context.Context, cardholderID string) (*IssuedCard, error) {
	params := &stripe.IssuingCardParams{
		Cardholder: stripe.String(cardholderID),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		Type:       stripe.String(string(stripe.IssuingCardTypeVirtual)),
		Status:     stripe.String(string(stripe.IssuingCardStatusActive)),
	}
	params.Context = ctx

	card, err := s.api.IssuingCards.New(params)
	if err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	return &IssuedCard{
		CardID:       card.ID,
		CardholderID: cardholderID,
		Last4:        card.Last4,
		Brand:        string(card.Brand),
	}, nil
}

func (s *stripeIssuer) SetCardActive(ctx context.Context, providerCardID string, active bool) error {
	status := stripe.IssuingCardStatusInactive
	if active {
		status = stripe.IssuingCardStatusActive
	}
	params := &stripe.IssuingCardParams{Status: stripe.String(string(status))}
	params.Context = ctx

	if _, err := s.api.IssuingCards.Update(providerCardID, params); err != nil {
		return fmt.Errorf("update card status: %w", err)
	}
	return nil
}

// CardDetails fetches the full PAN and CVC. Stripe only returns them when
// explicitly expanded; the result must never be stored.
func (s *stripeIssuer) CardDetails(ctx context.Context, providerCardID string) (*models.Details, error) {
	params := &stripe.IssuingCardParams{}
	params.Context = ctx
	params.AddExpand("number")
	params.AddExpand("cvc")

	card, err := s.api.IssuingCards.Get(providerCardID, params)
	if err != nil {
		return nil, fmt.Errorf("card details: %w", err)
	}
	return &models.Details{
		Number:   card.Number,
		CVC:      card.CVC,
		ExpMonth: card.ExpMonth,
		ExpYear:  card.ExpYear,
		Last4:    card.Last4,
	}, nil
}

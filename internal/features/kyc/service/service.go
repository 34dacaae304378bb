package service

import (
	"context"
	"strconv"
	"time"

	apperrors "cardtool-backend/internal/common/errors"
	"cardtool-backend/internal/features/kyc/sumsub"
	usermodels "cardtool-backend/internal/features/user/models"
	userservice "cardtool-backend/internal/features/user/service"
)

// Verifier is the slice of the Sumsub API the service needs.
type Verifier interface {
	CreateApplicant(ctx context.Context, externalUserID, levelName string) (*sumsub.Applicant, error)
	AccessToken(ctx context.Context, externalUserID, levelName string) (string, error)
}

type KYCService interface {
	// AccessToken makes sure an applicant exists for the user, marks the user
	// pending, and returns a WebSDK token for the verification flow.
	AccessToken(ctx context.Context, telegramID int64) (string, error)
	// ApplyReview records a verification outcome delivered by webhook.
	ApplyReview(ctx context.Context, telegramID int64, approved bool, at time.Time) error
}

type kycService struct {
	verifier  Verifier
	users     userservice.UserService
	levelName string
}

func NewKYCService(verifier Verifier, users userservice.UserService, levelName string) KYCService {
	return &kycService{verifier: verifier, users: users, levelName: levelName}
}

func (s *kycService) AccessToken(ctx context.Context, telegramID int64) (string, error) {
	user, err := s.users.Me(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if user.IsApproved() {
		return "", apperrors.New(apperrors.ErrCodeValidation, "already verified")
	}

	externalID := strconv.FormatInt(telegramID, 10)
	if _, err := s.verifier.CreateApplicant(ctx, externalID, s.levelName); err != nil && !sumsub.IsAlreadyExists(err) {
		return "", apperrors.Wrap(err, apperrors.ErrCodeExternalAPI, "verification provider unavailable")
	}

	token, err := s.verifier.AccessToken(ctx, externalID, s.levelName)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeExternalAPI, "verification provider unavailable")
	}

	if user.VerificationStatus == usermodels.VerificationUnverified {
		if err := s.users.SetVerification(ctx, telegramID, usermodels.VerificationPending, nil); err != nil {
			return "", err
		}
	}
	return token, nil
}

func (s *kycService) ApplyReview(ctx context.Context, telegramID int64, approved bool, at time.Time) error {
	if approved {
		return s.users.SetVerification(ctx, telegramID, usermodels.VerificationApproved, &at)
	}
	return s.users.SetVerification(ctx, telegramID, usermodels.VerificationRejected, nil)
}

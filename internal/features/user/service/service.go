package service

import (
	"context"
	"errors"
	"time"

	"cardtool-backend/internal/auth"
	apperrors "cardtool-backend/internal/common/errors"
	"cardtool-backend/internal/common/logger"
	"cardtool-backend/internal/features/user/models"
	"cardtool-backend/internal/features/user/repository"
)

// Cache is the optional read-through cache in front of the repository.
type Cache interface {
	Get(ctx context.Context, telegramID int64) (*models.User, error)
	Set(ctx context.Context, u *models.User) error
	Invalidate(ctx context.Context, telegramID int64) error
}

type UserService interface {
	// Login upserts the user behind a verified Telegram handshake.
	Login(ctx context.Context, data *auth.InitData) (*models.User, error)
	// LoginByID is the dev-bypass path: it ensures a bare user row exists.
	LoginByID(ctx context.Context, telegramID int64) (*models.User, error)
	Me(ctx context.Context, telegramID int64) (*models.User, error)
	Role(ctx context.Context, telegramID int64) (string, error)
	SetVerification(ctx context.Context, telegramID int64, status string, verifiedAt *time.Time) error
}

type userService struct {
	repo  repository.UserRepository
	cache Cache
}

func NewUserService(repo repository.UserRepository, cache Cache) UserService {
	return &userService{repo: repo, cache: cache}
}

func (s *userService) Login(ctx context.Context, data *auth.InitData) (*models.User, error) {
	if !data.TelegramID.IsInt64() {
		return nil, apperrors.NewUnauthorized("telegram id out of storable range")
	}

	user := &models.User{
		TelegramID: data.TelegramID.Int64(),
		Username:   data.User.Username,
		FirstName:  data.User.FirstName,
		LastName:   data.User.LastName,
		PhotoURL:   data.User.PhotoURL,
	}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to upsert user")
	}
	s.invalidate(ctx, user.TelegramID)

	return s.Me(ctx, user.TelegramID)
}

func (s *userService) LoginByID(ctx context.Context, telegramID int64) (*models.User, error) {
	if err := s.repo.Upsert(ctx, &models.User{TelegramID: telegramID}); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to upsert user")
	}
	s.invalidate(ctx, telegramID)
	return s.Me(ctx, telegramID)
}

func (s *userService) Me(ctx context.Context, telegramID int64) (*models.User, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, telegramID); err == nil && cached != nil {
			return cached, nil
		}
	}

	user, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.NewNotFound("user")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load user")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, user); err != nil {
			logger.Warn().Int64("telegram_id", telegramID).Err(err).Msg("Failed to cache user")
		}
	}
	return user, nil
}

func (s *userService) Role(ctx context.Context, telegramID int64) (string, error) {
	user, err := s.Me(ctx, telegramID)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

func (s *userService) SetVerification(ctx context.Context, telegramID int64, status string, verifiedAt *time.Time) error {
	if err := s.repo.SetVerificationStatus(ctx, telegramID, status, verifiedAt); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperrors.NewNotFound("user")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to update verification")
	}
	s.invalidate(ctx, telegramID)
	return nil
}

func (s *userService) invalidate(ctx context.Context, telegramID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, telegramID); err != nil {
		logger.Warn().Int64("telegram_id", telegramID).Err(err).Msg("Failed to invalidate user cache")
	}
}

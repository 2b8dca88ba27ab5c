package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"jamai-backend-go/internal/db"
	"jamai-backend-go/internal/models"
	"jamai-backend-go/internal/plans"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// Usage is a user's credit position for the current period.
type Usage struct {
	Plan             string `json:"plan"`
	CreditsTotal     int64  `json:"creditsTotal"`
	CreditsUsed      int64  `json:"creditsUsed"`
	CreditsAvailable int64  `json:"creditsAvailable"`
	Credits          int64  `json:"credits"`
}

type usageService struct {
	users   db.UserRepository
	catalog *plans.Catalog
	logger  *zap.Logger
}

// NewUsageService creates a UsageService.
func NewUsageService(users db.UserRepository, catalog *plans.Catalog, logger *zap.Logger) UsageService {
	return &usageService{users: users, catalog: catalog, logger: logger}
}

func (s *usageService) usageOf(u *models.User) *Usage {
	plan := u.PlanID
	if plan == "" {
		plan = u.Plan
	}
	return &Usage{
		Plan:             string(s.catalog.Normalize(plan)),
		CreditsTotal:     u.CreditsTotal,
		CreditsUsed:      u.CreditsUsed,
		CreditsAvailable: u.AvailableCredits(),
		Credits:          u.CreditBalance(),
	}
}

func (s *usageService) GetUsage(ctx context.Context, userID string) (*Usage, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("load usage for user %s: %w", userID, err)
	}
	return s.usageOf(user), nil
}

func (s *usageService) Deduct(ctx context.Context, userID string, amount int64) (*Usage, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	user, err := s.users.ConsumeCredits(ctx, userID, amount)
	switch {
	case errors.Is(err, db.ErrPreconditionFailed):
		return nil, fmt.Errorf("%w: %d requested", ErrInsufficientCredits, amount)
	case errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	case err != nil:
		return nil, fmt.Errorf("deduct credits for user %s: %w", userID, err)
	}
	s.logger.Debug("Credits deducted",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.Int64("credits_used", user.CreditsUsed))
	return s.usageOf(user), nil
}

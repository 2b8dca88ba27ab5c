package core

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jamai-backend-go/internal/db"
	"jamai-backend-go/internal/models"
)

// Credits granted to each side once the referred user first pays.
const (
	ReferredBonusCredits int64 = 250
	ReferrerBonusCredits int64 = 250
)

const (
	referralAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralSeedLength = 5
	referralSuffixLen  = 3
	maxCodeAttempts    = 5
)

var (
	ErrReferralCodeNotFound  = errors.New("invalid referral code")
	ErrSelfReferral          = errors.New("cannot use your own referral code")
	ErrAlreadyRedeemed       = errors.New("you have already used a referral code")
	ErrReferralCodeExhausted = errors.New("could not allocate a unique referral code")
	ErrMissingReferralInput  = errors.New("missing required referral parameters")
)

// GenerateResult is the code issued (or found) for a referrer.
type GenerateResult struct {
	ReferralCode string `json:"referralCode"`
	Exists       bool   `json:"exists"`
}

// GenerateReferralCode derives a five character seed from userID and appends
// a three character random suffix.
func GenerateReferralCode(userID string) string {
	return referralSeed(userID) + randomSuffix(referralSuffixLen)
}

func referralSeed(userID string) string {
	seed := 0
	for _, r := range userID {
		seed += int(r)
	}
	var b strings.Builder
	for i := 0; i < referralSeedLength; i++ {
		b.WriteByte(referralAlphabet[(seed+i*7)%len(referralAlphabet)])
	}
	return b.String()
}

func randomSuffix(n int) string {
	max := big.NewInt(int64(len(referralAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("referral suffix: %v", err))
		}
		out[i] = referralAlphabet[idx.Int64()]
	}
	return string(out)
}

// NormalizeReferralCode trims and uppercases a user supplied code.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type referralService struct {
	referrals   db.ReferralRepository
	redemptions db.RedemptionRepository
	users       db.UserRepository
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
	newCode     func(userID string) string
}

// NewReferralService creates a ReferralService.
func NewReferralService(
	referrals db.ReferralRepository,
	redemptions db.RedemptionRepository,
	users db.UserRepository,
	notifier Notifier,
	logger *zap.Logger,
) ReferralService {
	return &referralService{
		referrals:   referrals,
		redemptions: redemptions,
		users:       users,
		notifier:    notifier,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newCode:     GenerateReferralCode,
	}
}

func (s *referralService) timestamp() string {
	return s.now().Format(time.RFC3339)
}

func (s *referralService) Generate(ctx context.Context, userID, email string) (*GenerateResult, error) {
	if userID == "" || email == "" {
		return nil, fmt.Errorf("%w: userId and userEmail are required", ErrMissingReferralInput)
	}

	existing, err := s.referrals.GetByReferrerID(ctx, userID)
	if err == nil {
		return &GenerateResult{ReferralCode: existing.ReferralCode, Exists: true}, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("lookup referral for %s: %w", userID, err)
	}

	code, err := s.allocateCode(ctx, userID)
	if err != nil {
		return nil, err
	}

	referral := &models.Referral{
		ReferrerID:    userID,
		ReferrerEmail: email,
		ReferralCode:  code,
		CreatedAt:     s.timestamp(),
	}
	id, err := s.referrals.Create(ctx, referral)
	if err != nil {
		return nil, fmt.Errorf("create referral for %s: %w", userID, err)
	}
	s.logger.Info("Referral code issued",
		zap.String("referral_id", id),
		zap.String("referrer_id", userID),
		zap.String("referral_code", code))
	return &GenerateResult{ReferralCode: code, Exists: false}, nil
}

func (s *referralService) allocateCode(ctx context.Context, userID string) (string, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code := s.newCode(userID)
		_, err := s.referrals.GetByCode(ctx, code)
		if errors.Is(err, db.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check referral code %s: %w", code, err)
		}
		s.logger.Warn("Referral code collision, retrying",
			zap.String("referral_code", code),
			zap.Int("attempt", attempt))
	}
	return "", fmt.Errorf("%w after %d attempts", ErrReferralCodeExhausted, maxCodeAttempts)
}

func (s *referralService) Validate(ctx context.Context, code string) (*models.Referral, error) {
	code = NormalizeReferralCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: referral code is required", ErrMissingReferralInput)
	}
	referral, err := s.referrals.GetByCode(ctx, code)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrReferralCodeNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup referral code %s: %w", code, err)
	}
	return referral, nil
}

func (s *referralService) Redeem(ctx context.Context, code, referredUserID, referredEmail string) (*models.ReferralRedemption, error) {
	if referredUserID == "" || referredEmail == "" {
		return nil, fmt.Errorf("%w: referredUserId and referredUserEmail are required", ErrMissingReferralInput)
	}
	referral, err := s.Validate(ctx, code)
	if err != nil {
		return nil, err
	}
	if referral.ReferrerID == referredUserID {
		return nil, ErrSelfReferral
	}

	_, err = s.redemptions.GetByReferredUserID(ctx, referredUserID)
	if err == nil {
		return nil, ErrAlreadyRedeemed
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("lookup redemption for %s: %w", referredUserID, err)
	}

	redemption := &models.ReferralRedemption{
		ReferralCode:      referral.ReferralCode,
		ReferrerID:        referral.ReferrerID,
		ReferredUserID:    referredUserID,
		ReferredUserEmail: referredEmail,
		RedeemedAt:        s.timestamp(),
		CreditsAwarded:    false,
		Status:            models.RedemptionStatusPending,
	}
	id, err := s.redemptions.Create(ctx, redemption)
	if err != nil {
		return nil, fmt.Errorf("create redemption for %s: %w", referredUserID, err)
	}
	redemption.ID = id

	if err := s.referrals.IncrementTotalReferrals(ctx, referral.ID); err != nil {
		s.logger.Error("Failed to increment total referrals",
			zap.String("referral_id", referral.ID), zap.Error(err))
	}
	s.logger.Info("Referral code redeemed",
		zap.String("referral_code", referral.ReferralCode),
		zap.String("referrer_id", referral.ReferrerID),
		zap.String("referred_user_id", referredUserID))
	return redemption, nil
}

func (s *referralService) SettleReferralCredits(ctx context.Context, userID string) {
	log := s.logger.With(zap.String("referred_user_id", userID))

	pending, err := s.redemptions.GetPendingByReferredUserID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		log.Debug("No pending referral redemption")
		return
	}
	if err != nil {
		log.Error("Failed to look up pending redemption", zap.Error(err))
		return
	}

	claimed, err := s.redemptions.ClaimAward(ctx, pending.ID, s.timestamp())
	if err != nil {
		log.Error("Failed to claim referral award", zap.String("redemption_id", pending.ID), zap.Error(err))
		return
	}
	if !claimed {
		log.Info("Referral award already claimed", zap.String("redemption_id", pending.ID))
		return
	}

	s.award(ctx, userID, ReferredBonusCredits)
	s.award(ctx, pending.ReferrerID, ReferrerBonusCredits)

	if err := s.referrals.RecordSuccessfulReferral(ctx, pending.ReferrerID, ReferrerBonusCredits); err != nil {
		log.Error("Failed to update referrer stats", zap.String("referrer_id", pending.ReferrerID), zap.Error(err))
	}
	log.Info("Referral credits settled",
		zap.String("redemption_id", pending.ID),
		zap.String("referrer_id", pending.ReferrerID))
}

func (s *referralService) award(ctx context.Context, userID string, amount int64) {
	balance, err := s.users.AddCredits(ctx, userID, amount)
	if err != nil {
		s.logger.Error("Failed to award referral credits",
			zap.String("user_id", userID), zap.Int64("amount", amount), zap.Error(err))
		return
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, models.BillingNotification{
			ID:         uuid.NewString(),
			Type:       models.NotificationReferralSettled,
			UserID:     userID,
			Credits:    balance,
			OccurredAt: s.now(),
		})
	}
}

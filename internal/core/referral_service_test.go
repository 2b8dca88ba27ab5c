package core

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jamai-backend-go/internal/config"
	"jamai-backend-go/internal/models"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func TestGenerateReferralCode_Format(t *testing.T) {
	a := GenerateReferralCode("user_abc")
	b := GenerateReferralCode("user_abc")

	assert.Regexp(t, codePattern, a)
	assert.Regexp(t, codePattern, b)
	assert.Equal(t, a[:5], b[:5], "seed part is derived from the user id")
}

func TestReferralSeed_Deterministic(t *testing.T) {
	// "A" is 65: indexes 65, 72, 79, 86, 93 mod 36.
	assert.Equal(t, "3AHOV", referralSeed("A"))
	assert.Equal(t, referralSeed("ab"), referralSeed("ba"))
}

func TestGenerate_IssuesThenReturnsExisting(t *testing.T) {
	f := newFixture(t, config.CreditsResetPeriod)
	ctx := context.Background()

	first, err := f.referralSvc.Generate(ctx, "user_1", "u1@example.com")
	require.NoError(t, err)
	assert.False(t, first.Exists)
	assert.Regexp(t, codePattern, first.ReferralCode)

	stored, err := f.referrals.GetByReferrerID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, first.ReferralCode, stored.ReferralCode)
	assert.Equal(t, "u1@example.com", stored.ReferrerEmail)
	assert.Equal(t, "2025-03-01T12:00:00Z", stored.CreatedAt)

	second, err := f.referralSvc.Generate(ctx, "user_1", "u1@example.com")
	require.NoError(t, err)
	assert.True(t, second.Exists)
	assert.Equal(t, first.ReferralCode, second.ReferralCode)
}

func TestGenerate_RetriesOnCollision(t *testing.T) {
	f := newFixture(t, config.CreditsResetPeriod)
	ctx := context.Background()
	_, _ = f.referrals.Create(ctx, &models.Referral{ReferrerID: "other", ReferralCode: "TAKEN000"})

	codes := []string{"TAKEN000", "FRESH111"}
	f.referralSvc.newCode = func(string) string {
		c := codes[0]
		codes = codes[1:]
		return c
	}

	res, err := f.referralSvc.Generate(ctx, "user_1", "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, "FRESH111", res.ReferralCode)
}

func TestGenerate_ExhaustsAttempts(t *testing.T) {
	f := newFixture(t, config.CreditsResetPeriod)
	ctx := context.Background()
	_, _ = f.referrals.Create(ctx, &models.Referral{ReferrerID: "other", ReferralCode: "TAKEN000"})
	calls := 0
	f.referralSvc.newCode = func(string) string {
		calls++
		return "TAKEN000"
	}

	_, err := f.referralSvc.Generate(ctx, "user_1", "u1@example.com")
	assert.True(t, errors.Is(err, ErrReferralCodeExhausted))
	assert.Equal(t, maxCodeAttempts, calls)
}

func TestGenerate_RequiresInput(t *testing.T) {
	f := newFixture(t, config.CreditsResetPeriod)
	_, err := f.referralSvc.Generate(context.Background(), "user_1", "")
	assert.True(t, errors.Is(err, ErrMissingReferralInput))
}

func TestValidate(t *testing.T) {
	f := newFixture(t, config.CreditsResetPeriod)
	ctx := context.Background()
	_, _ = f.referrals.Create(ctx, &models.Referral{ReferrerID: "ref", ReferrerEmail: "r@example.com", ReferralCode: "ABCD1234"})

	r, err := f.referralSvc.Validate(ctx, " abcd1234 ")
	require.NoError(t, err)
	assert.Equal(t, "ref", r.ReferrerID)
	assert.Equal(t, "r@example.com", r.ReferrerEmail)

	_, err = f.referralSvc.Validate(ctx, "NOPE0000")
	assert.True(t, errors.Is(err, ErrReferralCodeNotFound))
}

func TestRedeem(t *testing.T) {
	f := newFixture(t, config.CreditsResetPeriod)
	ctx := context.Background()
	_, _ = f.referrals.Create(ctx, &models.Referral{ReferrerID: "ref", ReferralCode: "ABCD1234"})
	_, _ = f.referrals.Create(ctx, &models.Referral{ReferrerID: "ref2", ReferralCode: "WXYZ9876"})

	t.Run("unknown code", func(t *testing.T) {
		_, err := f.referralSvc.Redeem(ctx, "NOPE0000", "user_1", "u1@example.com")
		assert.True(t, errors.Is(err, ErrReferralCodeNotFound))
	})

	t.Run("self referral", func(t *testing.T) {
		_, err := f.referralSvc.Redeem(ctx, "ABCD1234", "ref", "ref@example.com")
		assert.True(t, errors.Is(err, ErrSelfReferral))
	})

	t.Run("first redemption", func(t *testing.T) {
		red, err := f.referralSvc.Redeem(ctx, "abcd1234", "user_1", "u1@example.com")
		require.NoError(t, err)
		assert.Equal(t, "ABCD1234", red.ReferralCode)
		assert.Equal(t, "ref", red.ReferrerID)
		assert.Equal(t, models.RedemptionStatusPending, red.Status)
		assert.False(t, red.CreditsAwarded)

		agg, err := f.referrals.GetByReferrerID(ctx, "ref")
		require.NoError(t, err)
		assert.Equal(t, int64(1), agg.TotalReferrals)
	})

	t.Run("second redemption with another code", func(t *testing.T) {
		_, err := f.referralSvc.Redeem(ctx, "WXYZ9876", "user_1", "u1@example.com")
		assert.True(t, errors.Is(err, ErrAlreadyRedeemed))

		red, err := f.redemptions.GetByReferredUserID(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, "ABCD1234", red.ReferralCode)
		assert.Len(t, f.redemptions.items, 1)
	})
}

func TestSettleReferralCredits_AwardsOnce(t *testing.T) {
	f := newFixture(t, config.CreditsResetPeriod)
	ctx := context.Background()
	f.users.put(&models.User{ID: "user_1", Plan: "pro", CreditsTotal: 500})
	f.users.put(&models.User{ID: "ref", Plan: "free", CreditsTotal: 25})
	_, _ = f.referrals.Create(ctx, &models.Referral{ReferrerID: "ref", ReferralCode: "ABCD1234"})
	_, err := f.referralSvc.Redeem(ctx, "ABCD1234", "user_1", "u1@example.com")
	require.NoError(t, err)

	f.referralSvc.SettleReferralCredits(ctx, "user_1")
	f.referralSvc.SettleReferralCredits(ctx, "user_1")

	assert.Equal(t, int64(750), *f.users.get("user_1").Credits)
	assert.Equal(t, int64(275), *f.users.get("ref").Credits)

	agg, _ := f.referrals.GetByReferrerID(ctx, "ref")
	assert.Equal(t, int64(1), agg.SuccessfulReferrals)
	assert.Equal(t, int64(250), agg.TotalCreditsEarned)

	red, _ := f.redemptions.GetByReferredUserID(ctx, "user_1")
	assert.True(t, red.CreditsAwarded)
	assert.Equal(t, "2025-03-01T12:00:00Z", red.CreditsAwardedAt)
	assert.Equal(t, []string{models.NotificationReferralSettled, models.NotificationReferralSettled}, f.notifier.types())
}

func TestSettleReferralCredits_NoPendingIsNoop(t *testing.T) {
	f := newFixture(t, config.CreditsResetPeriod)
	f.users.put(&models.User{ID: "user_1", CreditsTotal: 25})

	f.referralSvc.SettleReferralCredits(context.Background(), "user_1")

	assert.Nil(t, f.users.get("user_1").Credits)
	assert.Empty(t, f.notifier.types())
}

package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"jamai-backend-go/internal/config"
	"jamai-backend-go/internal/db"
	"jamai-backend-go/internal/models"
	"jamai-backend-go/internal/payments"
	"jamai-backend-go/internal/plans"
)

var testPrices = plans.PriceIDs{Pro: "price_pro", Teams: "price_teams", Enterprise: "price_enterprise"}

// fakeUsers is an in-memory db.UserRepository.
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
	err   error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*models.User{}}
}

func (f *fakeUsers) put(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeUsers) get(id string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (f *fakeUsers) GetByID(_ context.Context, userID string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u := f.get(userID); u != nil {
		return u, nil
	}
	return nil, fmt.Errorf("user '%s': %w", userID, db.ErrNotFound)
}

func (f *fakeUsers) ApplyPlan(_ context.Context, userID string, fields db.PlanFields) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		u = &models.User{ID: userID}
		f.users[userID] = u
	}
	u.Plan = fields.Plan
	u.PlanID = fields.Plan
	u.CreditsTotal = fields.CreditsTotal
	if fields.ResetUsage {
		u.CreditsUsed = 0
	}
	if fields.StripeCustomerID != "" {
		u.StripeCustomerID = fields.StripeCustomerID
	}
	u.UpdatedAt = fields.UpdatedAt
	return nil
}

func (f *fakeUsers) AddCredits(_ context.Context, userID string, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return 0, fmt.Errorf("user '%s': %w", userID, db.ErrNotFound)
	}
	balance := u.CreditBalance() + amount
	u.Credits = &balance
	return balance, nil
}

func (f *fakeUsers) ConsumeCredits(_ context.Context, userID string, amount int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user '%s': %w", userID, db.ErrNotFound)
	}
	if u.AvailableCredits() < amount {
		return nil, fmt.Errorf("consume: %w", db.ErrPreconditionFailed)
	}
	u.CreditsUsed += amount
	cp := *u
	return &cp, nil
}

// fakeSubscriptions is an in-memory db.SubscriptionRepository keyed by
// Stripe subscription id.
type fakeSubscriptions struct {
	mu      sync.Mutex
	records map[string]*models.Subscription
	// beforeCreate runs ahead of an insert, e.g. to simulate a concurrent writer.
	beforeCreate func()
	creates      int
	updates      int
}

func newFakeSubscriptions() *fakeSubscriptions {
	return &fakeSubscriptions{records: map[string]*models.Subscription{}}
}

func (f *fakeSubscriptions) get(stripeID string) *models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[stripeID]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (f *fakeSubscriptions) seed(r *models.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == "" {
		r.ID = r.StripeSubscriptionID
	}
	f.records[r.StripeSubscriptionID] = r
}

func (f *fakeSubscriptions) GetByStripeID(_ context.Context, stripeID string) (*models.Subscription, error) {
	if r := f.get(stripeID); r != nil {
		return r, nil
	}
	return nil, fmt.Errorf("subscription '%s': %w", stripeID, db.ErrNotFound)
}

func (f *fakeSubscriptions) Create(_ context.Context, sub *models.Subscription) error {
	if f.beforeCreate != nil {
		hook := f.beforeCreate
		f.beforeCreate = nil
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[sub.StripeSubscriptionID]; ok {
		return fmt.Errorf("subscription '%s': %w", sub.StripeSubscriptionID, db.ErrAlreadyExists)
	}
	cp := *sub
	cp.ID = sub.StripeSubscriptionID
	sub.ID = cp.ID
	f.records[sub.StripeSubscriptionID] = &cp
	f.creates++
	return nil
}

func (f *fakeSubscriptions) Update(_ context.Context, sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.records[sub.StripeSubscriptionID]
	if !ok {
		return db.ErrNotFound
	}
	cp := *sub
	cp.CreatedAt = existing.CreatedAt
	f.records[sub.StripeSubscriptionID] = &cp
	f.updates++
	return nil
}

func (f *fakeSubscriptions) UpdateStatus(_ context.Context, docID, status string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == docID {
			r.Status = status
			r.UpdatedAt = at
			return nil
		}
	}
	return db.ErrNotFound
}

// fakeReferrals is an in-memory db.ReferralRepository.
type fakeReferrals struct {
	mu    sync.Mutex
	items []*models.Referral
}

func (f *fakeReferrals) find(match func(*models.Referral) bool) *models.Referral {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if match(r) {
			cp := *r
			return &cp
		}
	}
	return nil
}

func (f *fakeReferrals) GetByReferrerID(_ context.Context, referrerID string) (*models.Referral, error) {
	if r := f.find(func(r *models.Referral) bool { return r.ReferrerID == referrerID }); r != nil {
		return r, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeReferrals) GetByCode(_ context.Context, code string) (*models.Referral, error) {
	if r := f.find(func(r *models.Referral) bool { return r.ReferralCode == code }); r != nil {
		return r, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeReferrals) Create(_ context.Context, referral *models.Referral) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *referral
	cp.ID = fmt.Sprintf("ref_%d", len(f.items)+1)
	f.items = append(f.items, &cp)
	return cp.ID, nil
}

func (f *fakeReferrals) IncrementTotalReferrals(_ context.Context, referralID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.ID == referralID {
			r.TotalReferrals++
			return nil
		}
	}
	return db.ErrNotFound
}

func (f *fakeReferrals) RecordSuccessfulReferral(_ context.Context, referrerID string, credits int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.ReferrerID == referrerID {
			r.SuccessfulReferrals++
			r.TotalCreditsEarned += credits
			return nil
		}
	}
	return db.ErrNotFound
}

// fakeRedemptions is an in-memory db.RedemptionRepository.
type fakeRedemptions struct {
	mu    sync.Mutex
	items []*models.ReferralRedemption
}

func (f *fakeRedemptions) find(match func(*models.ReferralRedemption) bool) *models.ReferralRedemption {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if match(r) {
			cp := *r
			return &cp
		}
	}
	return nil
}

func (f *fakeRedemptions) GetByReferredUserID(_ context.Context, userID string) (*models.ReferralRedemption, error) {
	if r := f.find(func(r *models.ReferralRedemption) bool { return r.ReferredUserID == userID }); r != nil {
		return r, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeRedemptions) GetPendingByReferredUserID(_ context.Context, userID string) (*models.ReferralRedemption, error) {
	if r := f.find(func(r *models.ReferralRedemption) bool {
		return r.ReferredUserID == userID && !r.CreditsAwarded
	}); r != nil {
		return r, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeRedemptions) Create(_ context.Context, redemption *models.ReferralRedemption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *redemption
	cp.ID = fmt.Sprintf("red_%d", len(f.items)+1)
	f.items = append(f.items, &cp)
	return cp.ID, nil
}

func (f *fakeRedemptions) ClaimAward(_ context.Context, id, awardedAt string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.ID != id {
			continue
		}
		if r.CreditsAwarded {
			return false, nil
		}
		r.CreditsAwarded = true
		r.Status = models.RedemptionStatusCompleted
		r.CreditsAwardedAt = awardedAt
		r.SubscriptionStartedAt = awardedAt
		return true, nil
	}
	return false, db.ErrNotFound
}

type fakeBillingEvents struct {
	mu     sync.Mutex
	events []models.BillingEvent
	err    error
}

func (f *fakeBillingEvents) Create(_ context.Context, e models.BillingEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

type fakeEventStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{seen: map[string]bool{}}
}

func (f *fakeEventStore) IsProcessed(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[id], nil
}

func (f *fakeEventStore) MarkProcessed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[id] = true
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.BillingNotification
}

func (r *recordingNotifier) Notify(_ context.Context, n models.BillingNotification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Type)
	}
	return out
}

// mockGateway is a testify mock of payments.Gateway.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ConstructEvent(payload []byte, signature string) (*payments.Event, error) {
	args := m.Called(payload, signature)
	if e, ok := args.Get(0).(*payments.Event); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) GetSubscription(ctx context.Context, id string) (*payments.Subscription, error) {
	args := m.Called(ctx, id)
	if s, ok := args.Get(0).(*payments.Subscription); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) FindCustomerByEmail(ctx context.Context, email string) (*payments.Customer, error) {
	args := m.Called(ctx, email)
	if c, ok := args.Get(0).(*payments.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) GetActiveSubscription(ctx context.Context, customerID string) (*payments.Subscription, error) {
	args := m.Called(ctx, customerID)
	if s, ok := args.Get(0).(*payments.Subscription); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, p payments.CheckoutParams) (*payments.Session, error) {
	args := m.Called(ctx, p)
	if s, ok := args.Get(0).(*payments.Session); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*payments.Session, error) {
	args := m.Called(ctx, customerID, returnURL)
	if s, ok := args.Get(0).(*payments.Session); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// fixture wires every service against in-memory stores.
type fixture struct {
	users       *fakeUsers
	subs        *fakeSubscriptions
	referrals   *fakeReferrals
	redemptions *fakeRedemptions
	events      *fakeEventStore
	audit       *fakeBillingEvents
	notifier    *recordingNotifier
	gateway     *mockGateway
	catalog     *plans.Catalog
	clock       time.Time

	referralSvc *referralService
	subSvc      *subscriptionService
	billing     BillingService
}

func newFixture(t *testing.T, policy string) *fixture {
	logger := zaptest.NewLogger(t)
	f := &fixture{
		users:       newFakeUsers(),
		subs:        newFakeSubscriptions(),
		referrals:   &fakeReferrals{},
		redemptions: &fakeRedemptions{},
		events:      newFakeEventStore(),
		audit:       &fakeBillingEvents{},
		notifier:    &recordingNotifier{},
		gateway:     &mockGateway{},
		catalog:     plans.DefaultCatalog(testPrices),
		clock:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }

	f.referralSvc = NewReferralService(f.referrals, f.redemptions, f.users, f.notifier, logger).(*referralService)
	f.referralSvc.now = now
	f.subSvc = NewSubscriptionService(f.subs, f.users, f.catalog, f.referralSvc, f.notifier, policy, logger).(*subscriptionService)
	f.subSvc.now = now

	f.billing = NewBillingService(BillingDeps{
		Gateway:       f.gateway,
		Subscriptions: f.subSvc,
		Users:         f.users,
		BillingEvents: f.audit,
		Events:        f.events,
		Catalog:       f.catalog,
	}, &config.Config{ClientURL: "https://app.jam.ai/", CreditsResetPolicy: policy}, logger)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

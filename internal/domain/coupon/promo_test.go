package coupon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opulence/opulence-api/internal/pkg/email"
)

type stubAudience struct {
	users   []Recipient
	exclude []uuid.UUID
	limit   int
}

func (a *stubAudience) RandomVerifiedCustomers(_ context.Context, exclude []uuid.UUID, limit int) ([]Recipient, error) {
	a.exclude, a.limit = exclude, limit
	skip := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	out := make([]Recipient, 0, len(a.users))
	for _, u := range a.users {
		if !skip[u.UserID] && len(out) < limit {
			out = append(out, u)
		}
	}
	return out, nil
}

type stubMailer struct {
	mu       sync.Mutex
	failFor  map[string]bool
	sent     []string
	template string
	data     []email.CouponPromotionData
}

func (m *stubMailer) SendTemplate(_ context.Context, to, _, templateName, _ string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.template = templateName
	if d, ok := data.(email.CouponPromotionData); ok {
		m.data = append(m.data, d)
	}
	if m.failFor[to] {
		return errors.New("sendgrid: status 500")
	}
	m.sent = append(m.sent, to)
	return nil
}

func recipients(n int) []Recipient {
	out := make([]Recipient, n)
	for i := range out {
		out[i] = Recipient{UserID: uuid.New(), Email: fmt.Sprintf("customer%d@example.com", i), Name: fmt.Sprintf("Customer %d", i)}
	}
	return out
}

func newTestPromo(repo *memRepo, audience *stubAudience, mailer *stubMailer) (*PromoSender, *[]time.Duration) {
	var slept []time.Duration
	p := NewPromoSender(repo, audience, mailer, PromoConfig{Delay: 500 * time.Millisecond, StorefrontURL: "https://opulence.example"})
	p.sleep = func(d time.Duration) { slept = append(slept, d) }
	return p, &slept
}

func TestPromoSendPartialFailure(t *testing.T) {
	repo := newMemRepo()
	c := seedCoupon(t, repo, func(c *Coupon) { c.MinOrderAmount = d("50") })
	users := recipients(3)
	mailer := &stubMailer{failFor: map[string]bool{users[1].Email: true}}
	promo, slept := newTestPromo(repo, &stubAudience{users: users}, mailer)

	report, err := promo.Send(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Success)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, BroadcastCompleted, report.Status)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], users[1].Email)
	assert.Len(t, report.Outcomes, 3)
	assert.False(t, report.Outcomes[1].Success)

	sends, _ := repo.ListSends(context.Background(), c.ID)
	assert.Len(t, sends, 2)

	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, *slept)
	assert.Equal(t, email.TemplateCouponPromotion, mailer.template)
	require.NotEmpty(t, mailer.data)
	assert.Equal(t, "SPRING15", mailer.data[0].Code)
	assert.Equal(t, "50.00", mailer.data[0].MinOrder)
	assert.Equal(t, "15% off", mailer.data[0].DiscountText)
}

func TestPromoSendSkipsAlreadySent(t *testing.T) {
	repo := newMemRepo()
	c := seedCoupon(t, repo, nil)
	users := recipients(3)
	audience := &stubAudience{users: users}
	promo, _ := newTestPromo(repo, audience, &stubMailer{})

	_, err := promo.Send(context.Background(), c)
	require.NoError(t, err)

	_, err = promo.Send(context.Background(), c)
	assert.ErrorIs(t, err, ErrNoEligibleRecipients)
	assert.Len(t, audience.exclude, 3)
	assert.Equal(t, defaultMaxRecipients, audience.limit)
}

func TestPromoSendCapsReportedErrors(t *testing.T) {
	repo := newMemRepo()
	c := seedCoupon(t, repo, nil)
	users := recipients(15)
	fail := make(map[string]bool)
	for _, u := range users {
		fail[u.Email] = true
	}
	promo, _ := newTestPromo(repo, &stubAudience{users: users}, &stubMailer{failFor: fail})

	report, err := promo.Send(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 15, report.Failed)
	assert.Len(t, report.Errors, maxReportedErrors)
	sends, _ := repo.ListSends(context.Background(), c.ID)
	assert.Empty(t, sends)
}

func TestPromoSendRecordFailure(t *testing.T) {
	repo := newMemRepo()
	repo.appendErr = errors.New("tx aborted")
	c := seedCoupon(t, repo, nil)
	promo, _ := newTestPromo(repo, &stubAudience{users: recipients(2)}, &stubMailer{})

	report, err := promo.Send(context.Background(), c)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, BroadcastFailed, report.Status)
	assert.Equal(t, 2, report.Success)
}

func TestServiceStartPromotionRunsInBackground(t *testing.T) {
	repo := newMemRepo()
	c := seedCoupon(t, repo, nil)
	promo, _ := newTestPromo(repo, &stubAudience{users: recipients(3)}, &stubMailer{})
	tracker := NewMemoryTracker()
	svc := NewService(repo, nil, Engine{}, promo, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	initial, err := svc.StartPromotion(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, BroadcastRunning, initial.Status)
	cancel()

	svc.Wait()

	report, err := svc.PromotionStatus(context.Background(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, BroadcastCompleted, report.Status)
	assert.Equal(t, 3, report.Success)

	_, ok, err := tracker.Acquire(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, ok, "lock is released after the send")
}

func TestServiceStartPromotionRejectsConcurrentSend(t *testing.T) {
	repo := newMemRepo()
	c := seedCoupon(t, repo, nil)
	tracker := NewMemoryTracker()
	_, _, err := tracker.Acquire(context.Background(), c.ID)
	require.NoError(t, err)

	promo, _ := newTestPromo(repo, &stubAudience{users: recipients(1)}, &stubMailer{})
	svc := NewService(repo, nil, Engine{}, promo, tracker)

	_, err = svc.StartPromotion(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrSendInProgress)
}

func TestServiceSendPromotionNoRecipients(t *testing.T) {
	repo := newMemRepo()
	c := seedCoupon(t, repo, nil)
	promo, _ := newTestPromo(repo, &stubAudience{}, &stubMailer{})
	svc := NewService(repo, nil, Engine{}, promo, nil)

	_, err := svc.SendPromotion(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrNoEligibleRecipients)

	report, err := svc.PromotionStatus(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, BroadcastFailed, report.Status)
}

func TestServiceSendPromotionRefusesExpiredCoupon(t *testing.T) {
	repo := newMemRepo()
	c := seedCoupon(t, repo, func(c *Coupon) { c.IsActive = false })
	promo, _ := newTestPromo(repo, &stubAudience{users: recipients(1)}, &stubMailer{})

	_, err := NewService(repo, nil, Engine{}, promo, nil).SendPromotion(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrNotRedeemable)
}

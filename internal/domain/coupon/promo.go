package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opulence/opulence-api/internal/pkg/email"
)

const (
	defaultMaxRecipients = 500
	maxReportedErrors    = 10

	// upper bound of one delivery; matches the SendGrid client timeout
	sendAllowance = 10 * time.Second
	lockSlack     = 5 * time.Minute
)

// Mailer delivers one templated email
type Mailer interface {
	SendTemplate(ctx context.Context, to, toName, templateName, subject string, data interface{}) error
}

// Recipient is a customer eligible for a promotion
type Recipient struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// Audience samples customers for a promotion
type Audience interface {
	RandomVerifiedCustomers(ctx context.Context, exclude []uuid.UUID, limit int) ([]Recipient, error)
}

// PromoConfig tunes the promotional send
type PromoConfig struct {
	Delay         time.Duration
	MaxRecipients int
	StorefrontURL string
}

// RecipientOutcome is the result of one send
type RecipientOutcome struct {
	UserID  uuid.UUID `json:"user_id"`
	Email   string    `json:"email"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

// SendReport summarizes a promotional send
type SendReport struct {
	CouponID   uuid.UUID          `json:"coupon_id"`
	Code       string             `json:"code"`
	Status     BroadcastStatus    `json:"status"`
	Total      int                `json:"total"`
	Success    int                `json:"success"`
	Failed     int                `json:"failed"`
	Errors     []string           `json:"errors,omitempty"`
	Outcomes   []RecipientOutcome `json:"outcomes,omitempty"`
	Error      string             `json:"error,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

// PromoSender emails a coupon to a sample of customers who have not received it yet
type PromoSender struct {
	repo     Repository
	audience Audience
	mailer   Mailer
	cfg      PromoConfig
	sleep    func(time.Duration)
	now      func() time.Time
}

func NewPromoSender(repo Repository, audience Audience, mailer Mailer, cfg PromoConfig) *PromoSender {
	if cfg.MaxRecipients <= 0 || cfg.MaxRecipients > defaultMaxRecipients {
		cfg.MaxRecipients = defaultMaxRecipients
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return &PromoSender{
		repo:     repo,
		audience: audience,
		mailer:   mailer,
		cfg:      cfg,
		sleep:    time.Sleep,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Send runs the batch to completion. Individual delivery failures are
// recorded in the report and never stop the batch. Successful recipients
// are appended to the coupon's sent records in one write at the end.
func (p *PromoSender) Send(ctx context.Context, c *Coupon) (*SendReport, error) {
	report := &SendReport{
		CouponID:  c.ID,
		Code:      c.Code,
		Status:    BroadcastRunning,
		StartedAt: p.now(),
	}

	already, err := p.repo.SentUserIDs(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	recipients, err := p.audience.RandomVerifiedCustomers(ctx, already, p.cfg.MaxRecipients)
	if err != nil {
		return nil, fmt.Errorf("sample recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil, ErrNoEligibleRecipients
	}

	subject := fmt.Sprintf("Your code %s: %s", c.Code, c.DiscountText())
	sent := make([]SentRecord, 0, len(recipients))

	for i, rcpt := range recipients {
		if i > 0 && p.cfg.Delay > 0 {
			p.sleep(p.cfg.Delay)
		}

		outcome := RecipientOutcome{UserID: rcpt.UserID, Email: rcpt.Email}
		err := p.mailer.SendTemplate(ctx, rcpt.Email, rcpt.Name, email.TemplateCouponPromotion, subject, p.templateData(c, rcpt))
		if err != nil {
			outcome.Error = err.Error()
			report.Failed++
			if len(report.Errors) < maxReportedErrors {
				report.Errors = append(report.Errors, rcpt.Email+": "+err.Error())
			}
		} else {
			outcome.Success = true
			report.Success++
			sent = append(sent, SentRecord{CouponID: c.ID, UserID: rcpt.UserID, Email: rcpt.Email, SentAt: p.now()})
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	report.Total = len(recipients)

	finished := p.now()
	report.FinishedAt = &finished

	if err := p.repo.AppendSent(ctx, sent); err != nil {
		report.Status = BroadcastFailed
		report.Error = "delivered but failed to record recipients"
		return report, err
	}

	report.Status = BroadcastCompleted
	log.Info().
		Str("coupon", c.Code).
		Int("total", report.Total).
		Int("success", report.Success).
		Int("failed", report.Failed).
		Msg("promotional send finished")
	return report, nil
}

// LockTTL is how long a broadcast may hold its coupon lock: every recipient's
// delay and delivery at their upper bound, plus slack
func (p *PromoSender) LockTTL() time.Duration {
	return time.Duration(p.cfg.MaxRecipients)*(p.cfg.Delay+sendAllowance) + lockSlack
}

func (p *PromoSender) templateData(c *Coupon, r Recipient) email.CouponPromotionData {
	data := email.CouponPromotionData{
		Name:         r.Name,
		DiscountText: c.DiscountText(),
		Code:         c.Code,
		ValidUntil:   c.ValidUntil.UTC().Format("January 2, 2006"),
		ShopURL:      p.cfg.StorefrontURL,
	}
	if c.MinOrderAmount.IsPositive() {
		data.MinOrder = c.MinOrderAmount.StringFixed(2)
	}
	return data
}

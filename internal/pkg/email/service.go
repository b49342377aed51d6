package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/rs/zerolog/log"

	"github.com/opulence/opulence-api/internal/pkg/errorhandler"
)

// Template names
const (
	TemplateCouponPromotion = "coupon_promotion"
)

// Transport delivers a rendered message
type Transport interface {
	Send(ctx context.Context, msg *EmailMessage) error
}

// Service renders templates and hands them to a transport
type Service struct {
	transport    Transport
	templates    map[string]*template.Template
	baseTemplate *template.Template
}

// NewService creates email service
func NewService(transport Transport) *Service {
	s := &Service{
		transport:    transport,
		templates:    make(map[string]*template.Template),
		baseTemplate: template.Must(template.New("base").Parse(BaseTemplate)),
	}

	s.loadTemplates()

	return s
}

func (s *Service) loadTemplates() {
	templates := map[string]string{
		TemplateCouponPromotion: CouponPromotionTemplate,
	}

	for name, content := range templates {
		tmpl, err := template.New(name).Parse(content)
		if err != nil {
			log.Error().Err(err).Str("template", name).Msg("Failed to parse email template")
			continue
		}
		s.templates[name] = tmpl
	}
}

// Render renders a named template wrapped into the base layout
func (s *Service) Render(templateName string, data interface{}) (string, error) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var contentBuf bytes.Buffer
	if err := tmpl.Execute(&contentBuf, data); err != nil {
		return "", err
	}

	var htmlBuf bytes.Buffer
	if err := s.baseTemplate.Execute(&htmlBuf, map[string]interface{}{
		"Content": template.HTML(contentBuf.String()),
	}); err != nil {
		return "", err
	}

	return htmlBuf.String(), nil
}

// SendTemplate renders and sends synchronously; the caller sees the delivery error
func (s *Service) SendTemplate(ctx context.Context, to, toName, templateName, subject string, data interface{}) error {
	html, err := s.Render(templateName, data)
	if err != nil {
		return err
	}

	err = s.transport.Send(ctx, &EmailMessage{
		To:          to,
		ToName:      toName,
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		errorhandler.LogExternalServiceError(ctx, "email", templateName, err)
	}
	return err
}

// LogTransport writes messages to the log instead of delivering them (no API key configured)
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, msg *EmailMessage) error {
	log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("html_bytes", len(msg.HTMLContent)).
		Msg("Email delivery disabled, message logged")
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/resend/resend-go/v2"

	"github.com/HammerMeetNail/tville/internal/config"
	"github.com/HammerMeetNail/tville/internal/logging"
)

var ErrEmailDelivery = errors.New("email delivery failed")

// emailSender delivers one message. The resend client and the console
// logger both satisfy it.
type emailSender interface {
	Send(ctx context.Context, msg emailMessage) error
}

type emailMessage struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

type EmailService struct {
	sender  emailSender
	from    string
	baseURL string
}

func NewEmailService(cfg *config.EmailConfig) *EmailService {
	var sender emailSender
	switch cfg.Provider {
	case "resend":
		sender = &resendSender{client: resend.NewClient(cfg.ResendAPIKey)}
	default:
		sender = consoleSender{logger: logging.Default}
	}
	return &EmailService{
		sender:  sender,
		from:    fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
		baseURL: cfg.BaseURL,
	}
}

func (s *EmailService) SendVerificationEmail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/#verify-email?token=%s", s.baseURL, token)
	return s.send(ctx, to,
		"Confirm your T-Ville address",
		fmt.Sprintf(`<p>Welcome to the neighborhood!</p><p><a href="%s">Confirm your email</a> to finish moving in.</p><p>This link expires in 24 hours.</p>`, html.EscapeString(link)),
		fmt.Sprintf("Welcome to the neighborhood!\n\nConfirm your email to finish moving in:\n%s\n\nThis link expires in 24 hours.\n", link),
	)
}

func (s *EmailService) SendRecommendationEmail(ctx context.Context, to, fromName, itemTitle string) error {
	link := fmt.Sprintf("%s/#library", s.baseURL)
	return s.send(ctx, to,
		fmt.Sprintf("%s recommended something for your library", fromName),
		fmt.Sprintf(`<p><strong>%s</strong> thinks you will like <em>%s</em>.</p><p><a href="%s">Open your library</a> to accept or decline.</p>`,
			html.EscapeString(fromName), html.EscapeString(itemTitle), html.EscapeString(link)),
		fmt.Sprintf("%s thinks you will like %q.\n\nOpen your library to accept or decline:\n%s\n", fromName, itemTitle, link),
	)
}

func (s *EmailService) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	err := s.sender.Send(ctx, emailMessage{
		From:    s.from,
		To:      to,
		Subject: subject,
		HTML:    htmlBody,
		Text:    textBody,
	})
	if err != nil {
		return fmt.Errorf("sending %q: %w", subject, err)
	}
	return nil
}

type resendSender struct {
	client *resend.Client
}

func (r *resendSender) Send(ctx context.Context, msg emailMessage) error {
	_, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	return err
}

// consoleSender writes messages to the log instead of delivering them.
type consoleSender struct {
	logger *logging.Logger
}

func (c consoleSender) Send(ctx context.Context, msg emailMessage) error {
	c.logger.Info("Email (console provider)", map[string]interface{}{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Text,
	})
	return nil
}

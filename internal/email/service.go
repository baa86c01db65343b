package email

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/wakilipro/booking-api/internal/config"
)

type Service interface {
	SendBookingConfirmation(ctx context.Context, to string, bookingRef string) error
	SendCancellationNotice(ctx context.Context, to string, bookingRef string, reason string) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg config.EmailConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendBookingConfirmation(ctx context.Context, to string, bookingRef string) error {
	subject := "Your Wakili Pro consultation is confirmed"
	content := fmt.Sprintf("Your consultation (reference %s) has been confirmed. "+
		"You can view the details and join the session from your dashboard.", bookingRef)
	return s.SendCustom(ctx, to, subject, content)
}

func (s *smtpService) SendCancellationNotice(ctx context.Context, to string, bookingRef string, reason string) error {
	subject := "Your Wakili Pro consultation was cancelled"
	content := fmt.Sprintf("Consultation %s has been cancelled. Reason: %s. "+
		"Any payment held for this booking will be refunded in full.", bookingRef, reason)
	return s.SendCustom(ctx, to, subject, content)
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", content)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

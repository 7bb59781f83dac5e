package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/backpackr/backpackr-server/internal/models"
)

// EmailService sends transactional auth mail over SMTP.
type EmailService struct {
	dialer    *gomail.Dialer
	logger    *log.Logger
	from      string
	clientURL string
}

func NewEmailService(host string, port int, username, password, from, clientURL string, logger *log.Logger) *EmailService {
	return &EmailService{
		dialer:    gomail.NewDialer(host, port, username, password),
		logger:    logger,
		from:      from,
		clientURL: clientURL,
	}
}

// SendPasswordReset mails the raw reset token embedded in a reset URL.
// The link dies after 15 minutes.
func (s *EmailService) SendPasswordReset(ctx context.Context, email, rawToken string, kind models.Kind) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s&type=%s", s.clientURL, rawToken, kind)

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.from, "Backpackr"))
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Password Reset Request - Backpackr")
	m.SetBody("text/plain",
		"We received a request to reset your Backpackr password.\n\n"+
			"Reset it here: "+resetURL+"\n\n"+
			"This link expires in 15 minutes. If you didn't request a reset, ignore this email.")
	m.AddAlternative("text/html",
		"<p>We received a request to reset your Backpackr password.</p>"+
			"<p><a href=\""+resetURL+"\">Reset Password</a></p>"+
			"<p>This link expires in 15 minutes. If you didn't request a reset, ignore this email.</p>")

	return s.send(ctx, email, m)
}

// SendPasswordResetConfirmation tells the account owner the password changed.
func (s *EmailService) SendPasswordResetConfirmation(ctx context.Context, email string, kind models.Kind) error {
	loginURL := fmt.Sprintf("%s/auth/login/%s", s.clientURL, kind)

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.from, "Backpackr"))
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Password Successfully Reset - Backpackr")
	m.SetBody("text/plain",
		"Your Backpackr password has been reset. You can now sign in with your new password: "+loginURL+"\n\n"+
			"If you didn't reset your password, contact support@backpackr.com immediately.")
	m.AddAlternative("text/html",
		"<p>Your Backpackr password has been reset.</p>"+
			"<p><a href=\""+loginURL+"\">Sign In Now</a></p>"+
			"<p>If you didn't reset your password, contact support@backpackr.com immediately.</p>")

	return s.send(ctx, email, m)
}

func (s *EmailService) send(ctx context.Context, email string, m *gomail.Message) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	select {
	case <-ctx.Done():
		s.logger.Printf("email send to %s cancelled: %v", email, ctx.Err())
		return ctx.Err()
	default:
		if err := s.dialer.DialAndSend(m); err != nil {
			s.logger.Printf("failed to send email to %s: %v", email, err)
			return err
		}
		return nil
	}
}

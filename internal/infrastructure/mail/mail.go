// Package mail composes and delivers account emails.
package mail

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/trackhub/auth-service/internal/core/domain"
)

const resetPath = "/reset-password"

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// PasswordResetMailer implements ports.Mailer by rendering a reset link and
// handing it to a Sender.
type PasswordResetMailer struct {
	sender  Sender
	baseURL string
}

// NewPasswordResetMailer creates a PasswordResetMailer. baseURL is the public
// web app address the reset link points to.
func NewPasswordResetMailer(sender Sender, baseURL string) *PasswordResetMailer {
	return &PasswordResetMailer{sender: sender, baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *PasswordResetMailer) SendPasswordReset(ctx context.Context, a *domain.Account, token string, expiresAt time.Time) error {
	link := m.resetLink(token)
	expires := expiresAt.UTC().Format(time.RFC1123)

	msg := Message{
		To:      a.Email,
		Subject: "Reset your password",
		HTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>Click to reset your password:</p><p><a href=\"%s\">Reset Password</a></p><p>This link expires %s.</p>",
			html.EscapeString(a.Name), html.EscapeString(link), expires,
		),
		Text: fmt.Sprintf("Hi %s,\n\nReset your password: %s\n\nThis link expires %s.\n", a.Name, link, expires),
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	return nil
}

func (m *PasswordResetMailer) resetLink(token string) string {
	if m.baseURL == "" {
		return token
	}
	return m.baseURL + resetPath + "?token=" + url.QueryEscape(token)
}

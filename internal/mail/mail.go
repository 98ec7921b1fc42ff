// Package mail renders and dispatches the verification and magic-link emails.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

// Sender delivers a single HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, subject, body string) error

func (f SenderFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

const (
	MagicLinkSubject    = "Your Magic Login Link"
	VerificationSubject = "Verify Your Email"
)

var (
	magicLinkTemplate = template.Must(template.New("magic-link").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f4f4;font-family:Arial,sans-serif;">
  <div style="max-width:600px;margin:40px auto;background:#ffffff;border-radius:12px;padding:40px;text-align:center;">
    <h1 style="color:#1a1a1a;font-size:28px;">Magic Link Login</h1>
    <p style="color:#666;font-size:16px;">Click the button below to securely sign in.</p>
    <a href="{{.URL}}" style="display:inline-block;padding:16px 48px;background:#667eea;color:#ffffff;text-decoration:none;border-radius:8px;">Sign In Now</a>
    <p style="color:#999;font-size:14px;">This link expires in {{.TTL}}.</p>
  </div>
</body>
</html>`))

	verificationTemplate = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f4f4;font-family:Arial,sans-serif;">
  <div style="max-width:600px;margin:40px auto;background:#ffffff;border-radius:12px;padding:40px;text-align:center;">
    <h1 style="color:#1a1a1a;font-size:28px;">Verify Your Email</h1>
    <p style="color:#666;font-size:16px;">Please verify your email to complete registration.</p>
    <a href="{{.URL}}" style="display:inline-block;padding:16px 48px;background:#11998e;color:#ffffff;text-decoration:none;border-radius:8px;">Verify Email</a>
  </div>
</body>
</html>`))
)

// Mailer builds links under BaseURL and hands the rendered message to a Sender.
type Mailer struct {
	sender  Sender
	baseURL string
}

func NewMailer(sender Sender, baseURL string) *Mailer {
	return &Mailer{
		sender:  sender,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

// SendMagicLink mails a link to <base>/magic-login/<token>.
func (m *Mailer) SendMagicLink(ctx context.Context, to, token string, ttl time.Duration) error {
	body, err := render(magicLinkTemplate, map[string]any{
		"URL": m.link("magic-login", token),
		"TTL": humanizeTTL(ttl),
	})
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, to, MagicLinkSubject, body); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	return nil
}

// SendVerification mails a link to <base>/verify/<token>.
func (m *Mailer) SendVerification(ctx context.Context, to, token string) error {
	body, err := render(verificationTemplate, map[string]any{
		"URL": m.link("verify", token),
	})
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, to, VerificationSubject, body); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (m *Mailer) link(route, token string) string {
	return m.baseURL + "/" + route + "/" + url.PathEscape(token)
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func humanizeTTL(ttl time.Duration) string {
	switch {
	case ttl <= 0:
		return "a short while"
	case ttl%time.Hour == 0:
		return plural(int(ttl/time.Hour), "hour")
	case ttl%time.Minute == 0:
		return plural(int(ttl/time.Minute), "minute")
	case ttl%time.Second == 0:
		return plural(int(ttl/time.Second), "second")
	default:
		return ttl.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

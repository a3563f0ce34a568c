package auth

import "context"

// MailKind names a transactional email template.
type MailKind string

const (
	MailVerification         MailKind = "verification"
	MailPasswordReset        MailKind = "password_reset"
	MailProviderVerification MailKind = "provider_verification"
)

// Mailer dispatches transactional email. It is optional: when no mailer is
// configured the orchestrator proceeds without sending. Dispatch is fire and
// forget; a send failure is logged, never surfaced to the caller.
type Mailer interface {
	Send(ctx context.Context, kind MailKind, address string, payload map[string]any) error
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, MailKind, string, map[string]any) error { return nil }

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return noopMailer{}
	}
	return m
}

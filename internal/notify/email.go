// Package notify implements the outbound delivery sink for second-factor
// codes. The log notifier mirrors what the upstream mailer receives; a real
// SMTP/provider client slots in behind the same domain.Notifier contract.
package notify

import (
	"context"
	"log"
	"time"
)

type EmailNotifier struct{}

func NewEmailNotifier() *EmailNotifier {
	return &EmailNotifier{}
}

// SendTwoFactorCode records the dispatch. The code itself is never written
// to the log. Errors returned here surface to the login caller as a
// delivery failure even though the challenge is already persisted; that is
// the inherited behavior (the user retries login, which invalidates the
// undelivered challenge).
func (n *EmailNotifier) SendTwoFactorCode(_ context.Context, email, _ string, expiresAt time.Time) error {
	log.Printf("2FA code issued for %s, expires %s", email, expiresAt.UTC().Format(time.RFC3339))
	return nil
}

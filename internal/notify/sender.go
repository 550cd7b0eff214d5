// Package notify is the notification-sender collaborator interface of
// §6.5: delivery is external to the core, which treats failure as
// retryable except on the verification-code path.
package notify

import (
	"context"
	"log/slog"

	"github.com/lavente-care/iam-gateway/internal/verification"
)

// Kind is the delivery channel.
type Kind string

const (
	KindEmail Kind = "email"
	KindSMS   Kind = "sms"
)

// Sender is the collaborator interface consumed by the core. A real
// deployment plugs in SMTP/SMS drivers, explicitly out of scope here
// (§1 non-goals: "bulk message delivery").
type Sender interface {
	Send(ctx context.Context, kind Kind, to, templateName string, variables map[string]string) error
}

// DevSender logs outbound notifications instead of delivering them,
// grounded on the teacher's DevMailer — the same "never block local
// development on a real SMTP/SMS account" rationale.
type DevSender struct {
	Logger *slog.Logger
}

func (s *DevSender) Send(ctx context.Context, kind Kind, to, templateName string, variables map[string]string) error {
	s.Logger.InfoContext(ctx, "notification_dev_send",
		"kind", kind, "to", to, "template", templateName, "variables", variables)
	return nil
}

// CodeSenderAdapter adapts a Sender to verification.Sender, routing
// verification codes through the "verification_code" template.
type CodeSenderAdapter struct {
	Sender Sender
}

func (a *CodeSenderAdapter) SendCode(ctx context.Context, target verification.TargetType, to, code string) error {
	kind := KindEmail
	if target == verification.TargetPhone {
		kind = KindSMS
	}
	return a.Sender.Send(ctx, kind, to, "verification_code", map[string]string{"code": code})
}

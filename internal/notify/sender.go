package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"sanastro.app/internal/obs"
)

// ResendSender delivers through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	obs.Logger().Debug("notify: email sent", "kind", string(msg.Kind), "id", resp.Id)
	return nil
}

// LogSender writes messages to the log instead of delivering them. Used when
// no API key is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	obs.Logger().Info("notify: email not delivered (no provider configured)",
		"kind", string(msg.Kind),
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

// NewSender picks Resend when apiKey is set and falls back to LogSender.
func NewSender(apiKey, from string) Sender {
	if apiKey == "" {
		return LogSender{}
	}
	return NewResendSender(apiKey, from)
}

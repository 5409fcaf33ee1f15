package billing

import (
	"context"
	"fmt"

	"github.com/emtchat/emtkit/pkg/email"
)

// paymentFailedEmail builds the dunning notice sent when a renewal charge
// fails. Kept deliberately plain; the provider retries on its own schedule
// and the portal link is where the customer fixes the card.
func paymentFailedEmail(to, portalURL string) email.SendEmailParams {
	body := fmt.Sprintf(`<p>We could not process your latest subscription payment.</p>
<p>Your access continues for now, but please update your payment method to avoid interruption.</p>
<p><a href="%s">Manage your billing</a></p>`, portalURL)

	return email.SendEmailParams{
		SendTo:   to,
		Subject:  "Action needed: payment failed",
		BodyHTML: body,
		Tag:      "billing-payment-failed",
	}
}

// notifyPaymentFailed sends the dunning notice when a sender is configured
// and the event carried a billing email. Send failures are logged by the
// caller, never surfaced to the webhook response.
func (s *service) notifyPaymentFailed(ctx context.Context, event *WebhookEvent) error {
	if s.emailSender == nil || event.CustomerEmail == "" {
		return nil
	}
	return s.emailSender.SendEmail(ctx, paymentFailedEmail(event.CustomerEmail, s.portalReturnURL))
}

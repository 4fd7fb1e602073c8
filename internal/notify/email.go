package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/obs"
	"github.com/noah-isme/foodtruck-orders/internal/pricing"
)

// EmailHandler sends the order confirmation email.
type EmailHandler struct {
	Mail common.EmailSender
}

// ProcessTask implements asynq.Handler.
func (h *EmailHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := DecodePayload(t)
	if err != nil {
		return err
	}
	to := strings.TrimSpace(p.Order.CustomerEmail)
	if h.Mail == nil || to == "" {
		return nil
	}
	err = h.Mail.Send(to, confirmationSubject(p), confirmationBody(p))
	obs.RecordSideEffect("email", err)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("order_id", p.Order.OrderID).Msg("confirmation_email_failed")
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}

func confirmationSubject(p OrderPayload) string {
	return fmt.Sprintf("Commande %s confirmée", shortID(p.Order.OrderID))
}

func confirmationBody(p OrderPayload) string {
	var b strings.Builder
	name := strings.TrimSpace(p.Order.CustomerName)
	if name == "" {
		name = "client"
	}
	fmt.Fprintf(&b, "<p>Bonjour %s,</p>", html.EscapeString(name))
	fmt.Fprintf(&b, "<p>Votre commande <strong>%s</strong> a bien été reçue.</p>", html.EscapeString(shortID(p.Order.OrderID)))
	if pickup, err := time.Parse(time.RFC3339, p.Order.PickupTime); err == nil {
		fmt.Fprintf(&b, "<p>Retrait prévu le %s.</p>", pickup.Format("02/01/2006 à 15:04"))
	}
	if p.Order.DiscountCents > 0 {
		fmt.Fprintf(&b, "<p>Réduction : %s</p>", pricing.FormatMajor(p.Order.DiscountCents))
	}
	fmt.Fprintf(&b, "<p>Total : <strong>%s</strong></p>", pricing.FormatMajor(p.Order.TotalCents))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}

// Package notifier tells buyers about their orders over SMS and email.
// Delivery is best-effort: failures are reported to the caller for logging
// and never affect order state.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sanziv9999/GharkoSwad/internal/identity"
	"github.com/sanziv9999/GharkoSwad/internal/money"
)

type Kind string

const (
	KindOrderPlaced     Kind = "order_placed"
	KindPaymentVerified Kind = "payment_verified"
	KindOrderDelivered  Kind = "order_delivered"
	KindOrderCancelled  Kind = "order_cancelled"
)

type Notification struct {
	Kind        Kind
	OrderID     uint
	BuyerID     uint
	AmountMinor int64
}

type textSender interface {
	Send(ctx context.Context, toPhoneNumber, message string) error
}

type mailSender interface {
	Send(ctx context.Context, recipientEmail, subject, bodyHTML, bodyText string) error
}

type Dispatcher struct {
	users    identity.Lookup
	currency string
	sms      textSender
	email    mailSender
}

func NewDispatcher(users identity.Lookup, currency string) *Dispatcher {
	return &Dispatcher{users: users, currency: currency}
}

func (d *Dispatcher) WithSMS(sms textSender) *Dispatcher {
	d.sms = sms
	return d
}

func (d *Dispatcher) WithEmail(email mailSender) *Dispatcher {
	d.email = email
	return d
}

// Notify resolves the buyer and fans the message out to every configured channel.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	user, err := d.users.GetUser(ctx, n.BuyerID)
	if err != nil {
		return fmt.Errorf("resolve buyer %d: %w", n.BuyerID, err)
	}

	subject, text := d.render(n)

	g, gctx := errgroup.WithContext(ctx)
	if d.sms != nil && user.Phone != "" {
		g.Go(func() error {
			return d.sms.Send(gctx, user.Phone, text)
		})
	}
	if d.email != nil && user.Email != "" {
		g.Go(func() error {
			html := fmt.Sprintf("<html><body><p>Dear %s,</p><p>%s</p><p>Best regards,</p><p>GharkoSwad</p></body></html>", user.Name, text)
			plain := fmt.Sprintf("Dear %s,\n\n%s\n\nBest regards,\nGharkoSwad", user.Name, text)
			return d.email.Send(gctx, user.Email, subject, html, plain)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) render(n Notification) (subject, text string) {
	amount := fmt.Sprintf("%s %s", d.currency, money.Format(n.AmountMinor))

	switch n.Kind {
	case KindOrderPlaced:
		return fmt.Sprintf("Order #%d placed", n.OrderID),
			fmt.Sprintf("Your order #%d has been successfully placed! Total: %s. Thank you for ordering with us!", n.OrderID, amount)
	case KindPaymentVerified:
		return fmt.Sprintf("Payment received for order #%d", n.OrderID),
			fmt.Sprintf("We received your payment of %s for order #%d. Your order is confirmed.", amount, n.OrderID)
	case KindOrderDelivered:
		return fmt.Sprintf("Order #%d delivered", n.OrderID),
			fmt.Sprintf("Your order #%d has been delivered. Enjoy your meal!", n.OrderID)
	case KindOrderCancelled:
		return fmt.Sprintf("Order #%d cancelled", n.OrderID),
			fmt.Sprintf("Your order #%d has been cancelled.", n.OrderID)
	default:
		return fmt.Sprintf("Order #%d update", n.OrderID),
			fmt.Sprintf("There is an update on your order #%d.", n.OrderID)
	}
}

type Sender interface {
	Notify(ctx context.Context, n Notification) error
}

// Go delivers n in the background and logs the outcome. A nil sender is a no-op.
func Go(s Sender, logger *slog.Logger, n Notification) {
	if s == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.Notify(ctx, n); err != nil {
			logger.Warn("notification failed", "order_id", n.OrderID, "kind", n.Kind, "error", err)
			return
		}
		logger.Debug("notification sent", "order_id", n.OrderID, "kind", n.Kind)
	}()
}

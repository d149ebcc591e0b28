// Package payments owns the payment half of the Order+Payment pair: creating
// the payment at placement, reconciling gateway callbacks and the
// delivery-side cash collection.
package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/events"
	"github.com/sanziv9999/GharkoSwad/internal/identity"
	"github.com/sanziv9999/GharkoSwad/internal/metrics"
	"github.com/sanziv9999/GharkoSwad/internal/models"
	"github.com/sanziv9999/GharkoSwad/internal/money"
	"github.com/sanziv9999/GharkoSwad/internal/notifier"
	"github.com/sanziv9999/GharkoSwad/internal/repository"
)

const defaultFailureReason = "Payment processing failed"

type Deps struct {
	Orders            *repository.Orders
	Events            events.Publisher
	Notifier          notifier.Sender
	Metrics           *metrics.Metrics
	Logger            *slog.Logger
	NewTransactionRef func() string
}

type Service struct {
	orders   *repository.Orders
	events   events.Publisher
	notifier notifier.Sender
	metrics  *metrics.Metrics
	logger   *slog.Logger
	newRef   func() string
}

func NewService(deps Deps) (*Service, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}

	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newRef := deps.NewTransactionRef
	if newRef == nil {
		newRef = uuid.NewString
	}

	return &Service{
		orders:   deps.Orders,
		events:   pub,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger.With("component", "payments"),
		newRef:   newRef,
	}, nil
}

func ParseMethod(raw string) (models.PaymentMethod, error) {
	method := models.PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	for _, m := range models.PaymentMethods {
		if m == method {
			return method, nil
		}
	}
	if method == "" {
		return "", apperr.New(apperr.CodeValidation, "payment method is required")
	}
	return "", apperr.Newf(apperr.CodeValidation, "invalid payment method: %s. Allowed values: %v", raw, models.PaymentMethods)
}

func ParseStatus(raw string) (models.PaymentStatus, error) {
	status := models.PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case models.PaymentStatusPending, models.PaymentStatusCompleted, models.PaymentStatusCancelled, models.PaymentStatusFailed:
		return status, nil
	}
	return "", apperr.Newf(apperr.CodeValidation, "invalid payment status: %s", raw)
}

// Create records the payment for a just-persisted order. It runs on the
// caller's transaction through repo. Every payment starts PENDING; eSewa
// orders placed without a reference get a generated one so the gateway
// callback always has a reconciliation key.
func (s *Service) Create(ctx context.Context, repo *repository.Orders, order *models.Order, amountMinor int64, method, transactionRef string) (*models.Payment, error) {
	if order == nil || order.ID == 0 {
		return nil, apperr.New(apperr.CodeValidation, "order must be persisted before creating payment")
	}
	if amountMinor <= 0 {
		return nil, apperr.New(apperr.CodeValidation, "payment amount must be positive")
	}
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		OrderID:     order.ID,
		AmountMinor: amountMinor,
		Method:      m,
		Status:      models.PaymentStatusPending,
	}
	ref := strings.TrimSpace(transactionRef)
	if ref == "" && m == models.PaymentMethodEsewa {
		ref = s.newRef()
	}
	if ref != "" {
		payment.TransactionID = &ref
	}

	if err := repo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	s.logger.Debug("payment created", "order_id", order.ID, "payment_id", payment.ID, "method", m)
	return payment, nil
}

type VerifyCommand struct {
	TransactionRef string
	Amount         decimal.Decimal
	GatewayRef     string
}

// Verify reconciles a gateway confirmation against the stored payment. A
// matching amount completes the payment and confirms a still-PLACED order.
// Replaying a confirmation for an already completed payment returns the
// order without changing it.
func (s *Service) Verify(ctx context.Context, cmd VerifyCommand) (*models.Order, error) {
	ref := strings.TrimSpace(cmd.TransactionRef)
	if ref == "" {
		return nil, apperr.New(apperr.CodeValidation, "transaction_uuid is required")
	}
	amountMinor, err := money.FromDecimal(cmd.Amount)
	if err != nil {
		return nil, err
	}
	if amountMinor <= 0 {
		return nil, apperr.New(apperr.CodeValidation, "amount must be positive")
	}

	var (
		order    *models.Order
		from     models.OrderStatus
		replayed bool
	)
	err = s.orders.Transaction(ctx, func(repo *repository.Orders) error {
		var err error
		order, err = repo.FindByTransactionID(ctx, ref)
		if err != nil {
			return err
		}
		payment := order.Payment
		if payment == nil {
			return apperr.Newf(apperr.CodeInconsistentState, "no payment associated with order %d", order.ID)
		}
		if payment.Method != models.PaymentMethodEsewa {
			return apperr.Newf(apperr.CodeStateConflict, "transaction %s is not an %s payment", ref, models.PaymentMethodEsewa)
		}
		if payment.AmountMinor != amountMinor {
			return apperr.Newf(apperr.CodeAmountMismatch, "amount mismatch for transaction_uuid %s: stored %s, received %s",
				ref, money.Format(payment.AmountMinor), money.Format(amountMinor))
		}

		switch payment.Status {
		case models.PaymentStatusCompleted:
			replayed = true
			return nil
		case models.PaymentStatusPending:
		default:
			return apperr.Newf(apperr.CodeStateConflict, "payment for order %d is %s and cannot be verified", order.ID, payment.Status)
		}

		payment.Status = models.PaymentStatusCompleted
		payment.GatewayRefID = ref
		if gw := strings.TrimSpace(cmd.GatewayRef); gw != "" {
			payment.GatewayRefID = gw
		}

		from = order.Status
		if order.Status == models.OrderStatusPlaced {
			order.Status = models.OrderStatusConfirmed
		}
		if err := repo.SaveState(ctx, order); err != nil {
			return err
		}
		return repo.SavePayment(ctx, payment)
	})
	if err != nil {
		s.metrics.ObserveVerification(verificationResult(err))
		s.logger.Warn("payment verification failed", "transaction_uuid", ref, "amount", money.Format(amountMinor), "error", err)
		return nil, err
	}

	if replayed {
		s.metrics.ObserveVerification("replayed")
		s.logger.Info("payment already verified", "order_id", order.ID, "transaction_uuid", ref)
		return order, nil
	}

	s.metrics.ObserveVerification("verified")
	s.logger.Info("payment verified", "order_id", order.ID, "transaction_uuid", ref, "from", from, "to", order.Status)
	s.publish(ctx, events.New(events.TypePaymentStatusChanged, order.ID, 0, string(models.PaymentStatusPending), string(models.PaymentStatusCompleted)))
	if from != order.Status {
		s.metrics.ObserveTransition(string(from), string(order.Status))
		s.publish(ctx, events.New(events.TypeOrderStatusChanged, order.ID, 0, string(from), string(order.Status)))
	}
	notifier.Go(s.notifier, s.logger, notifier.Notification{
		Kind:        notifier.KindPaymentVerified,
		OrderID:     order.ID,
		BuyerID:     order.UserID,
		AmountMinor: order.Payment.AmountMinor,
	})
	return order, nil
}

// MarkFailed records a gateway-reported failure on a pending eSewa payment.
// The order keeps its status.
func (s *Service) MarkFailed(ctx context.Context, transactionRef, reason string) (*models.Order, error) {
	ref := strings.TrimSpace(transactionRef)
	if ref == "" {
		return nil, apperr.New(apperr.CodeValidation, "transaction_uuid is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultFailureReason
	}

	var (
		order    *models.Order
		replayed bool
	)
	err := s.orders.Transaction(ctx, func(repo *repository.Orders) error {
		var err error
		order, err = repo.FindByTransactionID(ctx, ref)
		if err != nil {
			return err
		}
		payment := order.Payment
		if payment == nil {
			return apperr.Newf(apperr.CodeInconsistentState, "no payment associated with order %d", order.ID)
		}
		if payment.Method != models.PaymentMethodEsewa {
			return apperr.Newf(apperr.CodeStateConflict, "transaction %s is not an %s payment", ref, models.PaymentMethodEsewa)
		}
		switch payment.Status {
		case models.PaymentStatusFailed:
			replayed = true
			return nil
		case models.PaymentStatusPending:
		default:
			return apperr.Newf(apperr.CodeStateConflict, "payment for order %d is %s and cannot be marked failed", order.ID, payment.Status)
		}

		payment.Status = models.PaymentStatusFailed
		payment.FailureReason = reason
		if err := repo.SaveState(ctx, order); err != nil {
			return err
		}
		return repo.SavePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		s.metrics.ObserveVerification("failed")
		s.logger.Info("payment failed", "order_id", order.ID, "transaction_uuid", ref, "reason", reason)
		s.publish(ctx, events.New(events.TypePaymentStatusChanged, order.ID, 0, string(models.PaymentStatusPending), string(models.PaymentStatusFailed)))
	}
	return order, nil
}

type UpdateStatusCommand struct {
	OrderID uint
	Actor   identity.Actor
	Target  string
}

// UpdateStatus lets the delivery agent record cash collected on delivery.
// PENDING -> COMPLETED on a cash-on-delivery payment is the only legal move.
func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*models.Order, error) {
	if cmd.Actor.Role != models.RoleDelivery {
		return nil, apperr.New(apperr.CodeForbidden, "user must have DELIVERY role to update payment status")
	}
	target, err := ParseStatus(cmd.Target)
	if err != nil {
		return nil, err
	}
	if target != models.PaymentStatusCompleted {
		return nil, apperr.New(apperr.CodeValidation, "payment status can only be updated to COMPLETED")
	}

	var order *models.Order
	err = s.orders.Transaction(ctx, func(repo *repository.Orders) error {
		var err error
		order, err = repo.FindByID(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		payment := order.Payment
		if payment == nil {
			return apperr.Newf(apperr.CodeInconsistentState, "no payment associated with order %d", order.ID)
		}
		if payment.Method != models.PaymentMethodCashOnDelivery {
			return apperr.New(apperr.CodeStateConflict, "payment status can only be updated for CASH_ON_DELIVERY orders")
		}
		if payment.Status != models.PaymentStatusPending {
			return apperr.Newf(apperr.CodeStateConflict, "payment status can only be updated from PENDING to COMPLETED, current status is %s", payment.Status)
		}

		payment.Status = models.PaymentStatusCompleted
		if err := repo.SaveState(ctx, order); err != nil {
			return err
		}
		return repo.SavePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cash payment collected", "order_id", order.ID, "actor_id", cmd.Actor.ID)
	s.publish(ctx, events.New(events.TypePaymentStatusChanged, order.ID, cmd.Actor.ID, string(models.PaymentStatusPending), string(models.PaymentStatusCompleted)))
	return order, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "type", event.Type, "order_id", event.OrderID, "error", err)
	}
}

func verificationResult(err error) string {
	switch apperr.CodeOf(err) {
	case apperr.CodeAmountMismatch:
		return "mismatch"
	case apperr.CodeNotFound:
		return "not_found"
	default:
		return "rejected"
	}
}

// Package orders implements the order lifecycle: placement, the role-gated
// status machine, whole-order and per-item cancellation, and the read-side
// projections used by buyers, chefs and delivery agents.
package orders

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/catalog"
	"github.com/sanziv9999/GharkoSwad/internal/events"
	"github.com/sanziv9999/GharkoSwad/internal/identity"
	"github.com/sanziv9999/GharkoSwad/internal/metrics"
	"github.com/sanziv9999/GharkoSwad/internal/models"
	"github.com/sanziv9999/GharkoSwad/internal/money"
	"github.com/sanziv9999/GharkoSwad/internal/notifier"
	"github.com/sanziv9999/GharkoSwad/internal/payments"
	"github.com/sanziv9999/GharkoSwad/internal/repository"
)

type Deps struct {
	Orders   *repository.Orders
	Catalog  catalog.Lookup
	Identity identity.Lookup
	Payments *payments.Service
	Events   events.Publisher
	Notifier notifier.Sender
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Clock    func() time.Time
}

type Service struct {
	orders   *repository.Orders
	catalog  catalog.Lookup
	identity identity.Lookup
	payments *payments.Service
	events   events.Publisher
	notifier notifier.Sender
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    func() time.Time
}

func NewService(deps Deps) (*Service, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog lookup is required")
	}
	if deps.Identity == nil {
		return nil, errors.New("order service: identity lookup is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service: payment service is required")
	}

	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		orders:   deps.Orders,
		catalog:  deps.Catalog,
		identity: deps.Identity,
		payments: deps.Payments,
		events:   pub,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger.With("component", "orders"),
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// MaxQuantity caps a single line item.
const MaxQuantity = 1000

type PlaceOrderCommand struct {
	BuyerID             uint
	FoodItemIDs         []uint
	Quantities          []int
	Amount              decimal.Decimal
	PaymentMethod       string
	DeliveryLocation    string
	DeliveryPhone       string
	DeliveryCoordinates string
	TransactionRef      string
}

func (cmd PlaceOrderCommand) validate() error {
	if cmd.BuyerID == 0 {
		return apperr.New(apperr.CodeValidation, "userId is required")
	}
	if len(cmd.FoodItemIDs) == 0 {
		return apperr.New(apperr.CodeValidation, "food_item_ids required")
	}
	if len(cmd.FoodItemIDs) != len(cmd.Quantities) {
		return apperr.Newf(apperr.CodeValidation, "food item IDs and quantities must match: %d ids, %d quantities", len(cmd.FoodItemIDs), len(cmd.Quantities))
	}
	for i, qty := range cmd.Quantities {
		if qty <= 0 {
			return apperr.Newf(apperr.CodeValidation, "quantity must be positive for food item: %d", cmd.FoodItemIDs[i])
		}
		if qty > MaxQuantity {
			return apperr.Newf(apperr.CodeValidation, "quantity for food item %d exceeds the limit of %d", cmd.FoodItemIDs[i], MaxQuantity)
		}
	}
	if !cmd.Amount.IsPositive() {
		return apperr.New(apperr.CodeValidation, "valid payment amount is required")
	}
	if strings.TrimSpace(cmd.DeliveryLocation) == "" {
		return apperr.New(apperr.CodeValidation, "delivery location is required")
	}
	if strings.TrimSpace(cmd.DeliveryPhone) == "" {
		return apperr.New(apperr.CodeValidation, "delivery phone is required")
	}
	return nil
}

// Place validates the request against identity and catalog, then writes the
// order, its items and its PENDING payment in one transaction. The declared
// amount must equal the total computed from catalog prices.
func (s *Service) Place(ctx context.Context, cmd PlaceOrderCommand) (*models.Order, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	method, err := payments.ParseMethod(cmd.PaymentMethod)
	if err != nil {
		return nil, err
	}
	declaredMinor, err := money.FromDecimal(cmd.Amount)
	if err != nil {
		return nil, err
	}

	if _, err := s.identity.GetUser(ctx, cmd.BuyerID); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(cmd.FoodItemIDs))
	var totalMinor int64
	for i, id := range cmd.FoodItemIDs {
		food, err := s.catalog.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if !food.Available {
			return nil, apperr.Newf(apperr.CodeValidation, "food item is not available: %d", id)
		}
		item := models.OrderItem{
			FoodItemID:     food.ID,
			PreparerID:     food.PreparerID,
			Quantity:       cmd.Quantities[i],
			UnitPriceMinor: food.UnitPriceMinor,
		}
		sub, err := item.SubtotalMinor()
		if err != nil {
			return nil, err
		}
		if totalMinor, err = money.Add(totalMinor, sub); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if declaredMinor != totalMinor {
		return nil, apperr.Newf(apperr.CodeValidation, "declared amount %s does not match order total %s",
			money.Format(declaredMinor), money.Format(totalMinor))
	}

	order := &models.Order{
		UserID:              cmd.BuyerID,
		Status:              models.OrderStatusPlaced,
		DeliveryLocation:    strings.TrimSpace(cmd.DeliveryLocation),
		DeliveryPhone:       strings.TrimSpace(cmd.DeliveryPhone),
		DeliveryCoordinates: strings.TrimSpace(cmd.DeliveryCoordinates),
		Version:             1,
		OrderedAt:           s.clock(),
		Items:               items,
	}

	err = s.orders.Transaction(ctx, func(repo *repository.Orders) error {
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		payment, err := s.payments.Create(ctx, repo, order, totalMinor, string(method), cmd.TransactionRef)
		if err != nil {
			return err
		}
		order.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed", "order_id", order.ID, "user_id", order.UserID, "items", len(order.Items),
		"amount", money.Format(totalMinor), "payment_method", method)
	s.metrics.ObserveTransition("", string(order.Status))
	s.publish(ctx, events.New(events.TypeOrderPlaced, order.ID, order.UserID, "", string(order.Status)))
	notifier.Go(s.notifier, s.logger, notifier.Notification{
		Kind:        notifier.KindOrderPlaced,
		OrderID:     order.ID,
		BuyerID:     order.UserID,
		AmountMinor: totalMinor,
	})
	return order, nil
}

type TransitionCommand struct {
	OrderID uint
	Actor   identity.Actor
	Target  string
}

// UpdateOrderStatus is the chef's entry point: PLACED -> CONFIRMED ->
// PREPARING -> READY.
func (s *Service) UpdateOrderStatus(ctx context.Context, cmd TransitionCommand) (*models.Order, error) {
	if cmd.Actor.Role != models.RoleChef {
		return nil, apperr.New(apperr.CodeForbidden, "user must have CHEF role to update order status")
	}
	return s.transition(ctx, cmd)
}

// UpdateDeliveryStatus is the delivery agent's entry point: READY ->
// PICKED_UP -> DELIVERED.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, cmd TransitionCommand) (*models.Order, error) {
	if cmd.Actor.Role != models.RoleDelivery {
		return nil, apperr.New(apperr.CodeForbidden, "user must have DELIVERY role to update delivery status")
	}
	target, err := ParseStatus(cmd.Target)
	if err != nil {
		return nil, err
	}
	if target != models.OrderStatusPickedUp && target != models.OrderStatusDelivered {
		return nil, apperr.Newf(apperr.CodeValidation, "invalid delivery status: %s. Allowed values: %v", cmd.Target, deliveryStatuses)
	}
	return s.transition(ctx, cmd)
}

func (s *Service) transition(ctx context.Context, cmd TransitionCommand) (*models.Order, error) {
	target, err := ParseStatus(cmd.Target)
	if err != nil {
		return nil, err
	}

	var (
		order *models.Order
		from  models.OrderStatus
	)
	err = s.orders.Transaction(ctx, func(repo *repository.Orders) error {
		var err error
		order, err = repo.FindByID(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		from = order.Status

		if cmd.Actor.Role == models.RoleChef && !order.HasPreparer(cmd.Actor.ID) {
			return apperr.Newf(apperr.CodeForbidden, "order %d has no items prepared by chef %d", order.ID, cmd.Actor.ID)
		}
		if err := CheckTransition(order.Status, target, cmd.Actor.Role); err != nil {
			return err
		}
		if target == models.OrderStatusDelivered {
			if err := checkDeliveryPayment(order); err != nil {
				return err
			}
		}

		order.Status = target
		return repo.SaveState(ctx, order)
	})
	if err != nil {
		s.logger.Warn("order transition rejected", "order_id", cmd.OrderID, "actor_id", cmd.Actor.ID,
			"role", cmd.Actor.Role, "target", target, "error", err)
		return nil, err
	}

	s.logger.Info("order status updated", "order_id", order.ID, "from", from, "to", order.Status, "actor_id", cmd.Actor.ID)
	s.metrics.ObserveTransition(string(from), string(order.Status))
	s.publish(ctx, events.New(events.TypeOrderStatusChanged, order.ID, cmd.Actor.ID, string(from), string(order.Status)))
	if order.Status == models.OrderStatusDelivered {
		notifier.Go(s.notifier, s.logger, notifier.Notification{
			Kind:    notifier.KindOrderDelivered,
			OrderID: order.ID,
			BuyerID: order.UserID,
		})
	}
	return order, nil
}

// checkDeliveryPayment gates the final step: cash must be collected before
// an order paid on delivery can be marked DELIVERED.
func checkDeliveryPayment(order *models.Order) error {
	payment := order.Payment
	if payment == nil {
		return apperr.Newf(apperr.CodeInconsistentState, "no payment associated with order %d", order.ID)
	}
	if payment.Method == models.PaymentMethodCashOnDelivery && payment.Status != models.PaymentStatusCompleted {
		return apperr.Newf(apperr.CodeStateConflict,
			"CASH_ON_DELIVERY orders must have payment status COMPLETED to transition to DELIVERED, current payment status is %s", payment.Status)
	}
	return nil
}

// Cancel cancels a whole order on behalf of its buyer while it is still PLACED.
func (s *Service) Cancel(ctx context.Context, orderID, buyerID uint) (*models.Order, error) {
	if orderID == 0 || buyerID == 0 {
		return nil, apperr.New(apperr.CodeValidation, "userId and orderId are required")
	}

	var order *models.Order
	err := s.orders.Transaction(ctx, func(repo *repository.Orders) error {
		var err error
		order, err = repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != buyerID {
			return apperr.Newf(apperr.CodeForbidden, "unauthorized to cancel order %d", order.ID)
		}
		if order.Status != models.OrderStatusPlaced {
			return apperr.Newf(apperr.CodeStateConflict, "only placed orders can be cancelled, order %d is %s", order.ID, order.Status)
		}
		return cancelWhole(ctx, repo, order)
	})
	if err != nil {
		return nil, err
	}

	s.afterCancel(ctx, order, buyerID)
	return order, nil
}

func cancelWhole(ctx context.Context, repo *repository.Orders, order *models.Order) error {
	if order.Payment == nil {
		return apperr.Newf(apperr.CodeInconsistentState, "no payment associated with order %d", order.ID)
	}
	order.Status = models.OrderStatusCancelled
	order.Payment.Status = models.PaymentStatusCancelled
	if err := repo.SaveState(ctx, order); err != nil {
		return err
	}
	return repo.SavePayment(ctx, order.Payment)
}

func (s *Service) afterCancel(ctx context.Context, order *models.Order, actorID uint) {
	s.logger.Info("order cancelled", "order_id", order.ID, "actor_id", actorID)
	s.metrics.ObserveTransition(string(models.OrderStatusPlaced), string(models.OrderStatusCancelled))
	s.publish(ctx, events.New(events.TypeOrderStatusChanged, order.ID, actorID, string(models.OrderStatusPlaced), string(models.OrderStatusCancelled)))
	notifier.Go(s.notifier, s.logger, notifier.Notification{
		Kind:    notifier.KindOrderCancelled,
		OrderID: order.ID,
		BuyerID: order.UserID,
	})
}

// CancelItems removes the given line items from the buyer's PLACED orders.
// Items may span several orders. The batch is all-or-nothing. An order left
// without items is cancelled together with its payment; otherwise the
// payment amount is recomputed from the remaining items.
func (s *Service) CancelItems(ctx context.Context, buyerID uint, itemIDs []uint) ([]uint, error) {
	if buyerID == 0 {
		return nil, apperr.New(apperr.CodeValidation, "userId is required")
	}
	if len(itemIDs) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "orderItemIds cannot be null or empty")
	}
	if _, err := s.identity.GetUser(ctx, buyerID); err != nil {
		return nil, err
	}

	var (
		cancelled []uint
		affected  []*models.Order
	)
	err := s.orders.Transaction(ctx, func(repo *repository.Orders) error {
		cancelled = cancelled[:0]
		affected = affected[:0]
		byOrder := make(map[uint]*models.Order)
		removed := make(map[uint][]uint)

		for _, itemID := range itemIDs {
			if containsID(cancelled, itemID) {
				continue
			}
			item, err := repo.FindItem(ctx, itemID)
			if err != nil {
				return err
			}

			order, ok := byOrder[item.OrderID]
			if !ok {
				order, err = repo.FindByID(ctx, item.OrderID)
				if err != nil {
					return err
				}
				if order.UserID != buyerID {
					return apperr.Newf(apperr.CodeForbidden, "unauthorized to cancel order item: %d", itemID)
				}
				if order.Status != models.OrderStatusPlaced {
					return apperr.Newf(apperr.CodeStateConflict, "only items in PLACED orders can be cancelled: %d", itemID)
				}
				byOrder[order.ID] = order
				affected = append(affected, order)
			}

			order.Items = removeItem(order.Items, itemID)
			removed[order.ID] = append(removed[order.ID], itemID)
			cancelled = append(cancelled, itemID)
		}

		for _, order := range affected {
			if err := repo.DeleteItems(ctx, order.ID, removed[order.ID]); err != nil {
				return err
			}
			if len(order.Items) == 0 {
				if err := cancelWhole(ctx, repo, order); err != nil {
					return err
				}
				continue
			}
			if order.Payment == nil {
				return apperr.Newf(apperr.CodeInconsistentState, "no payment associated with order %d", order.ID)
			}
			total, err := order.ItemsTotalMinor()
			if err != nil {
				return err
			}
			order.Payment.AmountMinor = total
			if err := repo.SaveState(ctx, order); err != nil {
				return err
			}
			if err := repo.SavePayment(ctx, order.Payment); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, order := range affected {
		if order.Status == models.OrderStatusCancelled {
			s.afterCancel(ctx, order, buyerID)
			continue
		}
		s.logger.Info("order items cancelled", "order_id", order.ID, "remaining_items", len(order.Items),
			"amount", money.Format(order.Payment.AmountMinor))
		s.publish(ctx, events.New(events.TypeOrderItemsCancelled, order.ID, buyerID, string(order.Status), string(order.Status)))
	}
	return cancelled, nil
}

func removeItem(items []models.OrderItem, id uint) []models.OrderItem {
	out := items[:0]
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "type", event.Type, "order_id", event.OrderID, "error", err)
	}
}

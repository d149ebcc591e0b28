package orders

import (
	"context"
	"errors"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/identity"
	"github.com/sanziv9999/GharkoSwad/internal/models"
	"github.com/sanziv9999/GharkoSwad/internal/repository"
)

// QueryService serves the read-only order projections. Every query checks
// that the actor is allowed to see the requested slice of orders.
type QueryService struct {
	orders *repository.Orders
}

func NewQueryService(orders *repository.Orders) (*QueryService, error) {
	if orders == nil {
		return nil, errors.New("order query service: order repository is required")
	}
	return &QueryService{orders: orders}, nil
}

// ByBuyer lists a buyer's own orders, newest first. A blank status means all.
func (q *QueryService) ByBuyer(ctx context.Context, actor identity.Actor, buyerID uint, status string) ([]models.Order, error) {
	if actor.ID != buyerID {
		return nil, apperr.New(apperr.CodeForbidden, "cannot view another user's orders")
	}
	statuses, err := parseOptionalStatus(status)
	if err != nil {
		return nil, err
	}
	return q.orders.List(ctx, repository.Filter{BuyerID: buyerID, Statuses: statuses})
}

// ByPreparer lists orders containing at least one item prepared by chefID.
func (q *QueryService) ByPreparer(ctx context.Context, actor identity.Actor, chefID uint, status string) ([]models.Order, error) {
	if actor.Role != models.RoleChef {
		return nil, apperr.New(apperr.CodeForbidden, "user must have CHEF role to view chef orders")
	}
	if actor.ID != chefID {
		return nil, apperr.New(apperr.CodeForbidden, "cannot view another chef's orders")
	}
	statuses, err := parseOptionalStatus(status)
	if err != nil {
		return nil, err
	}
	return q.orders.List(ctx, repository.Filter{PreparerID: chefID, Statuses: statuses})
}

// ReadyForDelivery lists every READY order regardless of preparer.
func (q *QueryService) ReadyForDelivery(ctx context.Context, actor identity.Actor) ([]models.Order, error) {
	if actor.Role != models.RoleDelivery {
		return nil, apperr.New(apperr.CodeForbidden, "user must have DELIVERY role to view ready orders")
	}
	return q.orders.List(ctx, repository.Filter{Statuses: []models.OrderStatus{models.OrderStatusReady}})
}

// DeliveryByStatus lists orders in one of the delivery-owned statuses.
func (q *QueryService) DeliveryByStatus(ctx context.Context, actor identity.Actor, status string) ([]models.Order, error) {
	if actor.Role != models.RoleDelivery {
		return nil, apperr.New(apperr.CodeForbidden, "user must have DELIVERY role to view delivery orders")
	}
	target, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if target != models.OrderStatusPickedUp && target != models.OrderStatusDelivered {
		return nil, apperr.Newf(apperr.CodeValidation, "invalid delivery status: %s. Allowed values: %v", status, deliveryStatuses)
	}
	return q.orders.List(ctx, repository.Filter{Statuses: []models.OrderStatus{target}})
}

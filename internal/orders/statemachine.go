package orders

import (
	"strings"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/models"
)

// transitionTable maps the current status and the acting role to the only
// status that role may move the order to. Missing entries mean the role has
// no authority over the order in that status.
var transitionTable = map[models.OrderStatus]map[models.Role]models.OrderStatus{
	models.OrderStatusPlaced: {
		models.RoleChef: models.OrderStatusConfirmed,
	},
	models.OrderStatusConfirmed: {
		models.RoleChef: models.OrderStatusPreparing,
	},
	models.OrderStatusPreparing: {
		models.RoleChef: models.OrderStatusReady,
	},
	models.OrderStatusReady: {
		models.RoleDelivery: models.OrderStatusPickedUp,
	},
	models.OrderStatusPickedUp: {
		models.RoleDelivery: models.OrderStatusDelivered,
	},
}

var deliveryStatuses = []models.OrderStatus{models.OrderStatusPickedUp, models.OrderStatusDelivered}

// NextStatus returns the single successor role may drive current to.
func NextStatus(current models.OrderStatus, role models.Role) (models.OrderStatus, bool) {
	next, ok := transitionTable[current][role]
	return next, ok
}

// CheckTransition validates that role may move an order from current to target.
func CheckTransition(current, target models.OrderStatus, role models.Role) error {
	if current.Terminal() {
		return apperr.Newf(apperr.CodeStateConflict, "order in %s status cannot be updated", current)
	}
	next, ok := NextStatus(current, role)
	if !ok {
		return apperr.Newf(apperr.CodeForbidden, "role %s cannot update order in %s status", role, current)
	}
	if target != next {
		return apperr.Newf(apperr.CodeStateConflict, "order in %s status can only transition to %s, not %s", current, next, target)
	}
	return nil
}

// ParseStatus accepts a status name in any case.
func ParseStatus(raw string) (models.OrderStatus, error) {
	status := models.OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range models.OrderStatuses {
		if s == status {
			return status, nil
		}
	}
	return "", apperr.Newf(apperr.CodeValidation, "invalid status: %s. Allowed values: %v", raw, models.OrderStatuses)
}

// parseOptionalStatus treats a blank filter as "any status".
func parseOptionalStatus(raw string) ([]models.OrderStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	status, err := ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	return []models.OrderStatus{status}, nil
}

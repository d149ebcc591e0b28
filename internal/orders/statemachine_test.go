package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/models"
)

var roles = []models.Role{models.RoleUser, models.RoleChef, models.RoleDelivery}

func TestCheckTransitionExhaustive(t *testing.T) {
	legal := map[models.OrderStatus]struct {
		role models.Role
		next models.OrderStatus
	}{
		models.OrderStatusPlaced:    {models.RoleChef, models.OrderStatusConfirmed},
		models.OrderStatusConfirmed: {models.RoleChef, models.OrderStatusPreparing},
		models.OrderStatusPreparing: {models.RoleChef, models.OrderStatusReady},
		models.OrderStatusReady:     {models.RoleDelivery, models.OrderStatusPickedUp},
		models.OrderStatusPickedUp:  {models.RoleDelivery, models.OrderStatusDelivered},
	}

	for _, current := range models.OrderStatuses {
		for _, role := range roles {
			for _, target := range models.OrderStatuses {
				err := CheckTransition(current, target, role)
				want, hasSuccessor := legal[current]

				switch {
				case current.Terminal():
					assert.True(t, apperr.Is(err, apperr.CodeStateConflict), "%s -> %s by %s", current, target, role)
				case !hasSuccessor || want.role != role:
					assert.True(t, apperr.Is(err, apperr.CodeForbidden), "%s -> %s by %s", current, target, role)
				case want.next == target:
					assert.NoError(t, err, "%s -> %s by %s", current, target, role)
				default:
					assert.True(t, apperr.Is(err, apperr.CodeStateConflict), "%s -> %s by %s", current, target, role)
				}
			}
		}
	}
}

func TestCheckTransitionRejectsSkips(t *testing.T) {
	err := CheckTransition(models.OrderStatusPlaced, models.OrderStatusReady, models.RoleChef)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can only transition to CONFIRMED")

	err = CheckTransition(models.OrderStatusReady, models.OrderStatusDelivered, models.RoleDelivery)
	assert.True(t, apperr.Is(err, apperr.CodeStateConflict))
}

func TestCancelledOnlyReachableOutsideTable(t *testing.T) {
	for current, byRole := range transitionTable {
		for role, next := range byRole {
			assert.NotEqual(t, models.OrderStatusCancelled, next, "%s by %s", current, role)
		}
	}
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus(" picked_up ")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPickedUp, status)

	_, err = ParseStatus("SHIPPED")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	statuses, err := parseOptionalStatus("")
	require.NoError(t, err)
	assert.Nil(t, statuses)
}

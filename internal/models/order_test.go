package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemsTotalMinor(t *testing.T) {
	order := &Order{Items: []OrderItem{
		{Quantity: 2, UnitPriceMinor: 500},
		{Quantity: 1, UnitPriceMinor: 300},
	}}
	total, err := order.ItemsTotalMinor()
	require.NoError(t, err)
	assert.Equal(t, int64(1300), total)

	order.Items = append(order.Items, OrderItem{Quantity: 2, UnitPriceMinor: math.MaxInt64 / 2})
	_, err = order.ItemsTotalMinor()
	assert.Error(t, err)
}

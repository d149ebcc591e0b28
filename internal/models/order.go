package models

import (
	"time"

	"github.com/sanziv9999/GharkoSwad/internal/money"
)

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusPickedUp  OrderStatus = "PICKED_UP"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusPickedUp,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

type Order struct {
	ID                  uint        `gorm:"primaryKey"`
	UserID              uint        `gorm:"index;not null"`
	Status              OrderStatus `gorm:"type:varchar(20);index;not null"`
	DeliveryLocation    string      `gorm:"not null"`
	DeliveryPhone       string      `gorm:"not null"`
	DeliveryCoordinates string
	Version             uint `gorm:"not null"`
	OrderedAt           time.Time
	UpdatedAt           time.Time
	Items               []OrderItem `gorm:"foreignKey:OrderID"`
	Payment             *Payment    `gorm:"foreignKey:OrderID"`
}

// OrderItem snapshots the catalog item identity, its preparer and the unit
// price seen at placement.
type OrderItem struct {
	ID             uint  `gorm:"primaryKey"`
	OrderID        uint  `gorm:"index;not null"`
	FoodItemID     uint  `gorm:"index;not null"`
	PreparerID     uint  `gorm:"index;not null"`
	Quantity       int   `gorm:"not null"`
	UnitPriceMinor int64 `gorm:"not null"`
	CreatedAt      time.Time
}

func (i OrderItem) SubtotalMinor() (int64, error) {
	return money.Mul(i.UnitPriceMinor, i.Quantity)
}

// ItemsTotalMinor sums the subtotals of the order's current line items.
func (o *Order) ItemsTotalMinor() (int64, error) {
	var total int64
	for _, item := range o.Items {
		sub, err := item.SubtotalMinor()
		if err != nil {
			return 0, err
		}
		if total, err = money.Add(total, sub); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// HasPreparer reports whether any line item belongs to the given preparer.
func (o *Order) HasPreparer(preparerID uint) bool {
	for _, item := range o.Items {
		if item.PreparerID == preparerID {
			return true
		}
	}
	return false
}

package models

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentMethodEsewa          PaymentMethod = "ESEWA"
)

var PaymentMethods = []PaymentMethod{PaymentMethodCashOnDelivery, PaymentMethodEsewa}

// Payment is owned by exactly one order. TransactionID is nullable so cash
// orders placed without a client reference do not collide on the unique index.
type Payment struct {
	ID            uint          `gorm:"primaryKey"`
	OrderID       uint          `gorm:"uniqueIndex;not null"`
	AmountMinor   int64         `gorm:"not null"`
	Method        PaymentMethod `gorm:"type:varchar(32);not null"`
	Status        PaymentStatus `gorm:"type:varchar(20);not null"`
	TransactionID *string       `gorm:"uniqueIndex"`
	GatewayRefID  string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Payment) TransactionRef() string {
	if p == nil || p.TransactionID == nil {
		return ""
	}
	return *p.TransactionID
}

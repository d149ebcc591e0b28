// Package repository persists the Order aggregate (order, items, payment).
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/db"
	"github.com/sanziv9999/GharkoSwad/internal/models"
)

type Orders struct {
	db *gorm.DB
}

func NewOrders(conn *gorm.DB) *Orders {
	return &Orders{db: conn}
}

// WithTx returns a repository bound to tx.
func (r *Orders) WithTx(tx *gorm.DB) *Orders {
	return &Orders{db: tx}
}

// Transaction runs fn inside a database transaction and hands it a
// repository bound to that transaction. The order and its payment are
// always written through the same transaction.
func (r *Orders) Transaction(ctx context.Context, fn func(repo *Orders) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

func (r *Orders) aggregate(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("order_items.id") }).
		Preload("Payment")
}

func (r *Orders) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Omit("Payment").Create(order).Error; err != nil {
		return apperr.Wrap(apperr.CodeDependency, err, "create order")
	}
	return nil
}

func (r *Orders) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.Wrap(apperr.CodeStateConflict, err, "payment already exists for this order or transaction reference")
		}
		return apperr.Wrap(apperr.CodeDependency, err, "create payment")
	}
	return nil
}

func (r *Orders) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.aggregate(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, "order not found: %d", id)
		}
		return nil, apperr.Wrap(apperr.CodeDependency, err, "load order")
	}
	return &order, nil
}

// FindByTransactionID loads the order whose payment carries ref.
func (r *Orders) FindByTransactionID(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := r.aggregate(ctx).
		Where("id IN (?)", r.db.WithContext(ctx).Model(&models.Payment{}).Select("order_id").Where("transaction_id = ?", ref)).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, "order not found for transaction_uuid: %s", ref)
		}
		return nil, apperr.Wrap(apperr.CodeDependency, err, "load order by transaction")
	}
	return &order, nil
}

func (r *Orders) FindItem(ctx context.Context, id uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, "order item not found: %d", id)
		}
		return nil, apperr.Wrap(apperr.CodeDependency, err, "load order item")
	}
	return &item, nil
}

// SaveState writes the order status guarded by its version and bumps the
// version. A concurrent writer that got there first makes this fail with a
// state conflict.
func (r *Orders) SaveState(ctx context.Context, order *models.Order) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"status":     order.Status,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return apperr.Wrap(apperr.CodeDependency, res.Error, "update order")
	}
	if res.RowsAffected == 0 {
		return apperr.Newf(apperr.CodeStateConflict, "order %d was modified concurrently (version %d)", order.ID, order.Version)
	}
	order.Version++
	order.UpdatedAt = now
	return nil
}

func (r *Orders) SavePayment(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Save(payment).Error; err != nil {
		return apperr.Wrap(apperr.CodeDependency, err, "update payment")
	}
	return nil
}

func (r *Orders) DeleteItems(ctx context.Context, orderID uint, itemIDs []uint) error {
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND id IN ?", orderID, itemIDs).
		Delete(&models.OrderItem{}).Error
	if err != nil {
		return apperr.Wrap(apperr.CodeDependency, err, "delete order items")
	}
	return nil
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	BuyerID    uint
	PreparerID uint
	Statuses   []models.OrderStatus
}

func (r *Orders) List(ctx context.Context, f Filter) ([]models.Order, error) {
	q := r.aggregate(ctx)
	if f.BuyerID != 0 {
		q = q.Where("user_id = ?", f.BuyerID)
	}
	if f.PreparerID != 0 {
		q = q.Where("id IN (?)", r.db.WithContext(ctx).Model(&models.OrderItem{}).Select("order_id").Where("preparer_id = ?", f.PreparerID))
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}

	var orders []models.Order
	if err := q.Order("ordered_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, apperr.Wrap(apperr.CodeDependency, err, "list orders")
	}
	return orders, nil
}

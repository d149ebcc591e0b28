// Package catalog resolves food items for order placement. The catalog is
// owned by another system; only price, availability and preparer are read.
package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/models"
	"github.com/sanziv9999/GharkoSwad/internal/money"
)

type Item struct {
	ID             uint
	Name           string
	PreparerID     uint
	UnitPriceMinor int64
	Available      bool
}

type Lookup interface {
	GetItem(ctx context.Context, id uint) (Item, error)
}

type GormLookup struct {
	db *gorm.DB
}

func NewGormLookup(db *gorm.DB) *GormLookup {
	return &GormLookup{db: db}
}

func (l *GormLookup) GetItem(ctx context.Context, id uint) (Item, error) {
	var food models.FoodItem
	if err := l.db.WithContext(ctx).First(&food, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Item{}, apperr.Newf(apperr.CodeNotFound, "food item not found: %d", id)
		}
		return Item{}, apperr.Wrap(apperr.CodeDependency, err, "load food item")
	}

	return Item{
		ID:             food.ID,
		Name:           food.Name,
		PreparerID:     food.UserID,
		UnitPriceMinor: money.FromFloat(food.Price),
		Available:      food.Available,
	}, nil
}

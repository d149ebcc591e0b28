package models

// FoodItem is the catalog's table; this service only reads it. UserID is
// the chef who prepares the item.
type FoodItem struct {
	ID        uint    `gorm:"primaryKey"`
	Name      string  `gorm:"not null"`
	Price     float64 `gorm:"not null"`
	Available bool    `gorm:"not null"`
	UserID    uint    `gorm:"index;not null"`
}

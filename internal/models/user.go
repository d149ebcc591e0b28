package models

type Role string

const (
	RoleUser     Role = "USER"
	RoleChef     Role = "CHEF"
	RoleDelivery Role = "DELIVERY"
)

// User is the identity system's table; this service only reads it.
type User struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"not null"`
	Email    string `gorm:"uniqueIndex;not null"`
	Phone    string
	Role     Role `gorm:"type:varchar(20);not null;default:USER"`
}

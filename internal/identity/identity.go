// Package identity resolves users and their roles. Registration, login and
// credentials live in the identity system; this package only reads.
package identity

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
	"github.com/sanziv9999/GharkoSwad/internal/models"
)

type User struct {
	ID    uint
	Name  string
	Email string
	Phone string
	Role  models.Role
}

// Actor is the caller of an operation together with the role it acts under.
type Actor struct {
	ID   uint
	Role models.Role
}

func (u User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

type Lookup interface {
	GetUser(ctx context.Context, id uint) (User, error)
}

type GormLookup struct {
	db *gorm.DB
}

func NewGormLookup(db *gorm.DB) *GormLookup {
	return &GormLookup{db: db}
}

func (l *GormLookup) GetUser(ctx context.Context, id uint) (User, error) {
	var user models.User
	if err := l.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, apperr.Newf(apperr.CodeNotFound, "user not found: %d", id)
		}
		return User{}, apperr.Wrap(apperr.CodeDependency, err, "load user")
	}

	return User{
		ID:    user.ID,
		Name:  user.Username,
		Email: user.Email,
		Phone: user.Phone,
		Role:  user.Role,
	}, nil
}

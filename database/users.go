package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/CUknot/realty_crm/models"
)

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUser inserts the user; the bcrypt hook on models.User hashes the
// password.
func (s *UserStore) CreateUser(ctx context.Context, u *models.User) error {
	return translateError(s.db.WithContext(ctx).Create(u).Error)
}

func (s *UserStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return getUser(s.db.WithContext(ctx), id)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func getUser(db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

package repo

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/avolkov/booklend/internal/models"
)

type UserRepo struct {
	DB *gorm.DB
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.DB.WithContext(ctx).Create(user).Error; err != nil {
		return errors.Wrap(err, "create user")
	}
	return nil
}

func (r *UserRepo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "count users")
	}
	return n, nil
}

// IsRecordNotFound shields handlers from importing gorm directly for the one
// error they care about.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

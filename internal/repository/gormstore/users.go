package gormstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/repository"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	model := toUserModel(user)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return mapError(err)
	}
	user.ID = model.ID
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	result := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"name":          user.Name,
			"username":      user.Username,
			"email":         user.Email,
			"password_hash": user.PasswordHash,
			"role":          string(user.Role),
			"updated_at":    utc(user.UpdatedAt),
		})
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepository) first(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).Where(query, args...).Order("id ASC").First(&model).Error; err != nil {
		return nil, mapError(err)
	}
	user := model.toDomain()
	return &user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "LOWER(email) = LOWER(?)", email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *userRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	return r.first(ctx, "username = ? OR LOWER(email) = LOWER(?)", login, login)
}

func (r *userRepository) ListByRole(ctx context.Context, role *domain.Role) ([]domain.User, error) {
	query := r.db.WithContext(ctx).Model(&UserModel{})
	if role != nil {
		query = query.Where("role = ?", string(*role))
	}
	var models []UserModel
	if err := query.Order("name ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, mapError(err)
	}
	users := make([]domain.User, 0, len(models))
	for _, model := range models {
		users = append(users, model.toDomain())
	}
	return users, nil
}

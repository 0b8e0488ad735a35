package repository

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain/model"
	domainrepo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type userGormRepository struct {
	db *gorm.DB
}

// DI
// main.goでこれをnewしてusecaseに注入します。
func NewUserGormRepository(db *gorm.DB) domainrepo.UserRepository {
	return &userGormRepository{db: db}
}

// Create はユーザーを新規作成
func (r *userGormRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return err
	}
	return nil
}

// emailでユーザーを1件取得
func (r *userGormRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User

	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&u).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainrepo.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// IDでユーザーを1件取得
func (r *userGormRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&u).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainrepo.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userGormRepository) TouchLastLogin(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login_at", time.Now()).Error
}

// token_versionを+1 します。
func (r *userGormRepository) IncrementTokenVersion(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("token_version", gorm.Expr("token_version + ?", 1))

	if res.Error != nil {
		return res.Error
	}

	// 0件更新は「対象がない」
	if res.RowsAffected == 0 {
		return domainrepo.ErrUserNotFound
	}
	return nil
}

func (r *userGormRepository) UpdateRole(ctx context.Context, id int64, role model.Role) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"role":          role,
			"token_version": gorm.Expr("token_version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainrepo.ErrUserNotFound
	}
	return nil
}

func (r *userGormRepository) SetVerified(ctx context.Context, id int64, verified bool) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("is_verified", verified)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainrepo.ErrUserNotFound
	}
	return nil
}

func (r *userGormRepository) Deactivate(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":    false,
			"worker_of_id": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainrepo.ErrUserNotFound
	}
	return nil
}

func (r *userGormRepository) JoinCompanyIfUnaffiliated(ctx context.Context, userID int64, companyID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND worker_of_id IS NULL", userID).
		Update("worker_of_id", companyID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *userGormRepository) LeaveCompany(ctx context.Context, userID int64, companyID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND worker_of_id = ?", userID, companyID).
		Update("worker_of_id", nil)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *userGormRepository) ListWorkers(ctx context.Context, companyID int64) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("worker_of_id = ?", companyID).
		Order("id asc").
		Find(&users).Error
	if err != nil {
		return []model.User{}, err
	}
	return users, nil
}

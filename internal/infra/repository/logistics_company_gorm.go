package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type LogisticsCompanyGormRepository struct {
	db *gorm.DB
}

func NewLogisticsCompanyGormRepository(db *gorm.DB) *LogisticsCompanyGormRepository {
	return &LogisticsCompanyGormRepository{db: db}
}

func (r *LogisticsCompanyGormRepository) FindByID(ctx context.Context, id int64) (model.LogisticsCompany, error) {
	var c model.LogisticsCompany
	err := r.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.LogisticsCompany{}, repo.ErrNotFound
	}
	if err != nil {
		return model.LogisticsCompany{}, err
	}
	return c, nil
}

func (r *LogisticsCompanyGormRepository) FindByOwnerID(ctx context.Context, ownerID int64) (model.LogisticsCompany, error) {
	var c model.LogisticsCompany
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.LogisticsCompany{}, repo.ErrNotFound
	}
	if err != nil {
		return model.LogisticsCompany{}, err
	}
	return c, nil
}

func (r *LogisticsCompanyGormRepository) Create(ctx context.Context, c model.LogisticsCompany) (model.LogisticsCompany, error) {
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return model.LogisticsCompany{}, err
	}
	return c, nil
}

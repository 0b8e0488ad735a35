package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type LogisticsCompanyRepository interface {
	FindByID(ctx context.Context, id int64) (model.LogisticsCompany, error)
	FindByOwnerID(ctx context.Context, ownerID int64) (model.LogisticsCompany, error)
	Create(ctx context.Context, c model.LogisticsCompany) (model.LogisticsCompany, error)
}

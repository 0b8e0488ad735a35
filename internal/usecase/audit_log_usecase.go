package usecase

import (
	"context"
	"strings"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type AuditLogUsecase struct {
	auditRepo repo.AuditLogRepository
}

func NewAuditLogUsecase(auditRepo repo.AuditLogRepository) *AuditLogUsecase {
	return &AuditLogUsecase{auditRepo: auditRepo}
}

type AuditLogListInput struct {
	ActorUserID  *int64
	Action       string
	ResourceType string
	ResourceID   *int64
	From         string
	To           string
	Limit        int
	Offset       int
}

func (u *AuditLogUsecase) List(ctx context.Context, actor model.Actor, in AuditLogListInput) ([]model.AuditLog, error) {
	if !actor.IsAdmin() {
		return []model.AuditLog{}, errForbidden()
	}
	if in.Limit < 1 || in.Limit > 200 {
		return []model.AuditLog{}, errInvalid("invalid limit")
	}
	if in.Offset < 0 {
		return []model.AuditLog{}, errInvalid("invalid offset")
	}

	f := repo.AuditLogFilter{
		ActorUserID: in.ActorUserID,
		ResourceID:  in.ResourceID,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	f.Actions = model.ParseAuditActions(in.Action)
	if s := strings.TrimSpace(in.ResourceType); s != "" {
		rt := model.AuditResourceType(strings.ToLower(s))
		switch rt {
		case model.AuditResourceOrder, model.AuditResourceProduct, model.AuditResourceUser:
		default:
			return []model.AuditLog{}, errInvalid("invalid resource_type")
		}
		f.ResourceType = &rt
	}

	var ok bool
	if in.From != "" {
		if f.CreatedFrom, ok = parseDateTimeRFC3339(in.From); !ok {
			return []model.AuditLog{}, errInvalid("invalid from")
		}
	}
	if in.To != "" {
		if f.CreatedTo, ok = parseDateTimeRFC3339(in.To); !ok {
			return []model.AuditLog{}, errInvalid("invalid to")
		}
	}

	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return []model.AuditLog{}, errDB("audit_logs.list", err)
	}
	return logs, nil
}

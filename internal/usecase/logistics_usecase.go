package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 物流会社オーナーの操作（会社登録・配達員の管理）
type LogisticsUsecase struct {
	tx repo.TransactionManager
}

func NewLogisticsUsecase(tx repo.TransactionManager) *LogisticsUsecase {
	return &LogisticsUsecase{tx: tx}
}

func isLogisticsOwner(actor model.Actor) bool {
	return actor.IsActive && actor.Role == model.RoleLogisticsAdmin
}

// オーナーの会社。なければ403
func ownCompany(ctx context.Context, r repo.TxRepos, actor model.Actor) (model.LogisticsCompany, error) {
	c, err := r.Companies().FindByOwnerID(ctx, actor.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.LogisticsCompany{}, NewHTTPError(http.StatusForbidden, "no logistics company")
	}
	if err != nil {
		return model.LogisticsCompany{}, errDB("companies.find", err)
	}
	return c, nil
}

func (u *LogisticsUsecase) RegisterCompany(ctx context.Context, actor model.Actor, name string) (model.LogisticsCompany, error) {
	if !isLogisticsOwner(actor) {
		return model.LogisticsCompany{}, errForbidden()
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 255 {
		return model.LogisticsCompany{}, errInvalid("name required")
	}

	var out model.LogisticsCompany
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := r.Companies().FindByOwnerID(ctx, actor.ID)
		if err == nil {
			return errConflict("company already registered")
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return errDB("companies.find", err)
		}

		out, err = r.Companies().Create(ctx, model.LogisticsCompany{Name: name, OwnerID: actor.ID})
		if err != nil {
			return errDB("companies.create", err)
		}
		return nil
	})
	if err != nil {
		return model.LogisticsCompany{}, err
	}
	return out, nil
}

func (u *LogisticsUsecase) ListWorkers(ctx context.Context, actor model.Actor) ([]UserDTO, error) {
	if !isLogisticsOwner(actor) {
		return []UserDTO{}, errForbidden()
	}

	var outs []UserDTO
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := ownCompany(ctx, r, actor)
		if err != nil {
			return err
		}
		workers, err := r.Users().ListWorkers(ctx, c.ID)
		if err != nil {
			return errDB("users.list_workers", err)
		}
		outs = make([]UserDTO, 0, len(workers))
		for i := range workers {
			outs = append(outs, toUserDTO(&workers[i]))
		}
		return nil
	})
	if err != nil {
		return []UserDTO{}, err
	}
	return outs, nil
}

// 所属なしのDRIVERを自社に入れる
func (u *LogisticsUsecase) AddWorker(ctx context.Context, actor model.Actor, driverID int64) error {
	if !isLogisticsOwner(actor) {
		return errForbidden()
	}
	if driverID <= 0 {
		return errInvalid("invalid user id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := ownCompany(ctx, r, actor)
		if err != nil {
			return err
		}

		driver, err := r.Users().FindByID(ctx, driverID)
		if errors.Is(err, repo.ErrUserNotFound) {
			return errNotFound()
		}
		if err != nil {
			return errDB("users.find", err)
		}
		if !driver.IsActive || driver.Role != model.RoleDriver {
			return errInvalid("user is not an active driver")
		}

		ok, err := r.Users().JoinCompanyIfUnaffiliated(ctx, driverID, c.ID)
		if err != nil {
			return errDB("users.join_company", err)
		}
		if !ok {
			return errConflict("driver already belongs to a company")
		}
		return nil
	})
}

// 自社の配達員を外す
func (u *LogisticsUsecase) RemoveWorker(ctx context.Context, actor model.Actor, workerID int64) error {
	if !isLogisticsOwner(actor) {
		return errForbidden()
	}
	if workerID <= 0 {
		return errInvalid("invalid user id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := ownCompany(ctx, r, actor)
		if err != nil {
			return err
		}

		ok, err := r.Users().LeaveCompany(ctx, workerID, c.ID)
		if err != nil {
			return errDB("users.leave_company", err)
		}
		if !ok {
			return errNotFound()
		}

		return writeAudit(ctx, r, auditEntry{
			actorID:      actor.ID,
			action:       model.AuditActionRemoveWorker,
			resourceType: model.AuditResourceUser,
			resourceID:   workerID,
			before:       map[string]any{"worker_of_id": c.ID},
			after:        map[string]any{"worker_of_id": nil},
		})
	})
}

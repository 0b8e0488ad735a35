package usecase

import (
	"context"
	"errors"
	"strings"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 管理者によるユーザー管理
type AdminUserUsecase struct {
	tx repo.TransactionManager
}

func NewAdminUserUsecase(tx repo.TransactionManager) *AdminUserUsecase {
	return &AdminUserUsecase{tx: tx}
}

func findUser(ctx context.Context, r repo.TxRepos, userID int64) (*model.User, error) {
	user, err := r.Users().FindByID(ctx, userID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return nil, errNotFound()
	}
	if err != nil {
		return nil, errDB("users.find", err)
	}
	return user, nil
}

// 停止。所属も外し、token_versionを上げて発行済みtokenを無効にする
func (u *AdminUserUsecase) DeactivateUser(ctx context.Context, actor model.Actor, userID int64) error {
	if !actor.IsAdmin() {
		return errForbidden()
	}
	if userID <= 0 {
		return errInvalid("invalid user id")
	}
	if userID == actor.ID {
		return errInvalid("cannot deactivate yourself")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := findUser(ctx, r, userID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return nil
		}

		if err := r.Users().Deactivate(ctx, userID); err != nil {
			return errDB("users.deactivate", err)
		}
		if err := r.Users().IncrementTokenVersion(ctx, userID); err != nil {
			return errDB("users.increment_token_version", err)
		}

		return writeAudit(ctx, r, auditEntry{
			actorID:      actor.ID,
			action:       model.AuditActionDeactivateUser,
			resourceType: model.AuditResourceUser,
			resourceID:   userID,
			before:       map[string]any{"is_active": true, "worker_of_id": user.WorkerOfID},
			after:        map[string]any{"is_active": false, "worker_of_id": nil},
		})
	})
}

type AdminUpdateUserInput struct {
	Role       string
	IsVerified *bool
}

// ロール・本人確認の変更
func (u *AdminUserUsecase) UpdateUser(ctx context.Context, actor model.Actor, userID int64, in AdminUpdateUserInput) (UserDTO, error) {
	if !actor.IsAdmin() {
		return UserDTO{}, errForbidden()
	}
	if userID <= 0 {
		return UserDTO{}, errInvalid("invalid user id")
	}

	var newRole model.Role
	if s := strings.TrimSpace(in.Role); s != "" {
		r, err := model.ParseRole(s)
		if err != nil {
			return UserDTO{}, errInvalid("invalid role")
		}
		newRole = r
	}
	if newRole == "" && in.IsVerified == nil {
		return UserDTO{}, errInvalid("nothing to update")
	}
	if newRole != "" && userID == actor.ID && newRole != model.RoleAdmin {
		return UserDTO{}, errInvalid("cannot change your own role")
	}

	var out UserDTO
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := findUser(ctx, r, userID)
		if err != nil {
			return err
		}
		before := map[string]any{"role": user.Role, "is_verified": user.IsVerified}

		if newRole != "" && newRole != user.Role {
			if err := r.Users().UpdateRole(ctx, userID, newRole); err != nil {
				return errDB("users.update_role", err)
			}
			user.Role = newRole
			user.TokenVersion++
		}
		if in.IsVerified != nil && *in.IsVerified != user.IsVerified {
			if err := r.Users().SetVerified(ctx, userID, *in.IsVerified); err != nil {
				return errDB("users.set_verified", err)
			}
			user.IsVerified = *in.IsVerified
		}

		if err := writeAudit(ctx, r, auditEntry{
			actorID:      actor.ID,
			action:       model.AuditActionUpdateUser,
			resourceType: model.AuditResourceUser,
			resourceID:   userID,
			before:       before,
			after:        map[string]any{"role": user.Role, "is_verified": user.IsVerified},
		}); err != nil {
			return err
		}

		out = toUserDTO(user)
		return nil
	})
	if err != nil {
		return UserDTO{}, err
	}
	return out, nil
}

package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
)

// ユーザーが見つかりませんを統一
var ErrUserNotFound = errors.New("user not found")

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。なければErrUserNotFound
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	//メールからユーザーを一件取得する。なければErrUserNotFound
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	//最終ログイン時刻の更新
	TouchLastLogin(ctx context.Context, userID int64) error
	//トークンのバージョンを＋１
	IncrementTokenVersion(ctx context.Context, userID int64) error

	//ロール変更。tokenに入っているのでtoken_versionも+1する
	UpdateRole(ctx context.Context, userID int64, role model.Role) error
	//本人確認済みフラグ
	SetVerified(ctx context.Context, userID int64, verified bool) error

	//停止（is_active=false, worker_of_id=NULL）
	Deactivate(ctx context.Context, userID int64) error
	//所属なしのときだけ物流会社に所属させる
	JoinCompanyIfUnaffiliated(ctx context.Context, userID int64, companyID int64) (bool, error)
	//companyIDに所属しているときだけ所属を外す
	LeaveCompany(ctx context.Context, userID int64, companyID int64) (bool, error)
	ListWorkers(ctx context.Context, companyID int64) ([]model.User, error)
}

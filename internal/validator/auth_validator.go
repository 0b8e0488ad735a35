package validator

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"marketplace/internal/domain/model"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"
)

var (
	// 入力が不正
	ErrInvalidInput = usecase.ErrValidation

	// emailが既に使用済み
	ErrEmailAlreadyUsed = usecase.ErrEmailTaken
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type authValidator struct {
	users repository.UserRepository
}

// Usecaseは interface を依存注入
func NewAuthValidator(users repository.UserRepository) usecase.AuthValidator {
	return &authValidator{users: users}
}

// サインアップの入力を検証
func (v *authValidator) ValidateRegister(ctx context.Context, email string, password string, role model.Role) error {
	email = strings.TrimSpace(email)

	// 必須チェック
	if email == "" || password == "" {
		return ErrInvalidInput
	}
	if !isEmailLike(email) {
		return ErrInvalidInput
	}

	// パスワード 8〜72文字（bcryptの上限）
	if len(password) < 8 || len(password) > 72 {
		return ErrInvalidInput
	}

	//ADMINは自己登録できない
	switch role {
	case model.RoleUser, model.RoleDriver, model.RoleLogisticsAdmin:
	case model.RoleAdmin:
		return ErrInvalidInput
	default:
		return ErrInvalidInput
	}

	// email重複チェック（DBが必要）
	u, err := v.users.FindByEmail(ctx, email)
	if err == nil && u != nil {
		return ErrEmailAlreadyUsed
	}
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	return nil
}

// ログインの入力を検証
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	email = strings.TrimSpace(email)

	if email == "" || password == "" {
		return ErrInvalidInput
	}
	if !isEmailLike(email) {
		return ErrInvalidInput
	}
	return nil
}

// 簡易メール形式をチェック
func isEmailLike(s string) bool {
	return emailRe.MatchString(s)
}

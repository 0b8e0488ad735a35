package validator

import (
	"context"
	"errors"
	"testing"

	"marketplace/internal/domain/model"
	"marketplace/internal/repository"

	"github.com/stretchr/testify/assert"
)

// FindByEmailだけ使う
type stubUsers struct {
	repository.UserRepository
	existing map[string]bool
	err      error
}

func (s stubUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.existing[email] {
		return &model.User{ID: 1, Email: email}, nil
	}
	return nil, repository.ErrUserNotFound
}

func TestValidateRegister(t *testing.T) {
	v := NewAuthValidator(stubUsers{existing: map[string]bool{"taken@example.com": true}})
	ctx := context.Background()

	assert.NoError(t, v.ValidateRegister(ctx, "new@example.com", "password123", model.RoleUser))
	assert.NoError(t, v.ValidateRegister(ctx, "driver@example.com", "password123", model.RoleDriver))

	assert.ErrorIs(t, v.ValidateRegister(ctx, "", "password123", model.RoleUser), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateRegister(ctx, "not-an-email", "password123", model.RoleUser), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateRegister(ctx, "new@example.com", "short", model.RoleUser), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateRegister(ctx, "new@example.com", "password123", model.RoleAdmin), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateRegister(ctx, "new@example.com", "password123", model.Role("ROOT")), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateRegister(ctx, "taken@example.com", "password123", model.RoleUser), ErrEmailAlreadyUsed)
}

func TestValidateRegisterRepoError(t *testing.T) {
	boom := errors.New("db down")
	v := NewAuthValidator(stubUsers{err: boom})

	err := v.ValidateRegister(context.Background(), "new@example.com", "password123", model.RoleUser)
	assert.ErrorIs(t, err, boom)
}

func TestValidateLogin(t *testing.T) {
	v := NewAuthValidator(stubUsers{})
	ctx := context.Background()

	assert.NoError(t, v.ValidateLogin(ctx, "a@example.com", "x"))
	assert.ErrorIs(t, v.ValidateLogin(ctx, "a@example.com", ""), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateLogin(ctx, "bad", "x"), ErrInvalidInput)
}

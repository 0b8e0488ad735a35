package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	//400 入力不足
	ErrValidation = errors.New("validation error")
	//409 email重複
	ErrEmailTaken = errors.New("email already used")
)

// accesstokenの有効期限
const accessTokenTTL = 15 * time.Minute

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, email string, password string, role model.Role) error
	ValidateLogin(ctx context.Context, email string, password string) error
}

type UserDTO struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	IsActive     bool   `json:"is_active"`
	IsVerified   bool   `json:"is_verified"`
	WorkerOfID   *int64 `json:"worker_of_id"`
}

type JwtAccessTokenDTO struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

type AuthRegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

type AuthUsecase struct {
	jwtSecret string
	users     repository.UserRepository
	validator AuthValidator
}

func NewAuthUsecase(jwtSecret string, users repository.UserRepository, validator AuthValidator) *AuthUsecase {
	return &AuthUsecase{jwtSecret: jwtSecret, users: users, validator: validator}
}

func (u *AuthUsecase) Register(ctx context.Context, req AuthRegisterRequest) (UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	role := model.RoleUser
	if r := strings.TrimSpace(req.Role); r != "" {
		parsed, err := model.ParseRole(r)
		if err != nil {
			return UserDTO{}, errInvalid("invalid role")
		}
		role = parsed
	}

	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, email, req.Password, role); err != nil {
		return UserDTO{}, mapValidationError(err)
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserDTO{}, errDB("bcrypt", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(pwHash),
		Role:         role,
		TokenVersion: 0,
		IsActive:     true,
	}
	if err := u.users.Create(ctx, user); err != nil {
		// 同時登録のunique違反
		return UserDTO{}, errConflict("email already used")
	}

	return toUserDTO(user), nil
}

func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest) (AuthLoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := u.validator.ValidateLogin(ctx, email, req.Password); err != nil {
		return AuthLoginResponse{}, mapValidationError(err)
	}

	user, err := u.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return AuthLoginResponse{}, errDB("users.find_by_email", err)
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return AuthLoginResponse{}, NewHTTPError(http.StatusForbidden, "user is inactive")
	}

	//last_login更新（失敗してもログインは通す）
	_ = u.users.TouchLastLogin(ctx, user.ID)

	token, expiresIn, err := u.issueAccessToken(user, time.Now())
	if err != nil {
		return AuthLoginResponse{}, errDB("jwt.sign", err)
	}

	return AuthLoginResponse{
		User: toUserDTO(user),
		Token: JwtAccessTokenDTO{
			AccessToken:  token,
			ExpiresIn:    expiresIn,
			TokenVersion: user.TokenVersion,
		},
	}, nil
}

func (u *AuthUsecase) Me(ctx context.Context, actor model.Actor) (UserDTO, error) {
	user, err := u.users.FindByID(ctx, actor.ID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return UserDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err != nil {
		return UserDTO{}, errDB("users.find", err)
	}
	return toUserDTO(user), nil
}

// jwt発行
func (u *AuthUsecase) issueAccessToken(user *model.User, now time.Time) (string, int, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  now.Add(accessTokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(u.jwtSecret))
	if err != nil {
		return "", 0, err
	}
	return signed, int(accessTokenTTL.Seconds()), nil
}

func mapValidationError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return errInvalid("invalid input")
	case errors.Is(err, ErrEmailTaken):
		return errConflict("email already used")
	}
	return errDB("validator", err)
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		Role:         string(u.Role),
		TokenVersion: u.TokenVersion,
		IsActive:     u.IsActive,
		IsVerified:   u.IsVerified,
		WorkerOfID:   u.WorkerOfID,
	}
}

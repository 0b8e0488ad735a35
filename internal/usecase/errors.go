package usecase

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// 失敗の種類。handlerはStatusを、テストや呼び出し側はKindを見る。
type ErrorKind string

const (
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindPermissionDenied ErrorKind = "PERMISSION_DENIED"
	KindAlreadyAssigned  ErrorKind = "ALREADY_ASSIGNED"
	KindInvalidArgument  ErrorKind = "INVALID_ARGUMENT"
	KindConflictingState ErrorKind = "CONFLICTING_STATE"
	KindUnauthorized     ErrorKind = "UNAUTHORIZED"
	KindInternal         ErrorKind = "INTERNAL"
)

type HTTPError struct {
	Status  int
	Kind    ErrorKind
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Kind:    kindForStatus(status),
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// errの種類。nilなら""、HTTPError以外はINTERNAL
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if he, ok := AsHTTPError(err); ok {
		return he.Kind
	}
	return KindInternal
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return KindInvalidArgument
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindPermissionDenied
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflictingState
	}
	return KindInternal
}

func errNotFound() error {
	return &HTTPError{Status: http.StatusNotFound, Kind: KindNotFound, Message: "not found"}
}

func errForbidden() error {
	return &HTTPError{Status: http.StatusForbidden, Kind: KindPermissionDenied, Message: "you don't have access to this order"}
}

func errAlreadyAssigned() error {
	return &HTTPError{
		Status:  http.StatusConflict,
		Kind:    KindAlreadyAssigned,
		Message: "this order was just taken by someone else, please pick another",
	}
}

func errInvalid(message string) error {
	return &HTTPError{Status: http.StatusBadRequest, Kind: KindInvalidArgument, Message: message}
}

func errConflict(message string) error {
	return &HTTPError{Status: http.StatusConflict, Kind: KindConflictingState, Message: message}
}

// 想定外の失敗。ここだけエラーログを出す
func errDB(op string, err error) error {
	log.Error().Err(err).Str("op", op).Msg("storage failure")
	return &HTTPError{Status: http.StatusInternalServerError, Kind: KindInternal, Message: "db error"}
}

package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	assert.True(t, isUniqueViolation(fmt.Errorf("create order: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: pgerrcode.CheckViolation}))
	assert.False(t, isUniqueViolation(errors.New("connection reset")))
	assert.False(t, isUniqueViolation(nil))
}

package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	notFound := ToDomainError(fmt.Errorf("load user: %w", pgx.ErrNoRows))
	assert.Equal(t, CodeNotFound, notFound.Code)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)

	forbidden := ToDomainError(fiber.NewError(http.StatusForbidden, "staff role required"))
	assert.Equal(t, CodeForbidden, forbidden.Code)
	assert.Equal(t, "staff role required", forbidden.Message)

	internal := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, "internal server error", internal.Message)
	assert.EqualError(t, internal.Unwrap(), "boom")
}

func TestDomainErrorMatchesByCode(t *testing.T) {
	sentinel := NewDomainError("UNKNOWN_DELETION_MODE", "unknown deletion mode", http.StatusInternalServerError, nil)
	wrapped := fmt.Errorf("%w: %q", sentinel, "shred")

	assert.ErrorIs(t, wrapped, sentinel)
	assert.Equal(t, "UNKNOWN_DELETION_MODE", CodeOf(wrapped))
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.False(t, errors.Is(NewForbidden("x"), sentinel))
}

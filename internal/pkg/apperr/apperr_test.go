package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), fiber.StatusBadRequest},
		{Unauthorized("no key"), fiber.StatusUnauthorized},
		{NotFound("missing"), fiber.StatusNotFound},
		{Upstream(errors.New("timeout"), "gateway failed"), fiber.StatusBadRequest},
		{Persistence(errors.New("deadlock"), "save failed"), fiber.StatusBadRequest},
		{New(KindInternal, errors.New("redis down"), "queue failed"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		e, ok := As(tt.err)
		require.True(t, ok)
		assert.Equal(t, tt.want, e.Status())
	}
}

func TestAsThroughWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := fmt.Errorf("create payment: %w", Upstream(cause, "Payment initiation failed"))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindUpstream, e.Kind)
	assert.True(t, errors.Is(wrapped, cause))
	assert.True(t, IsKind(wrapped, KindUpstream))
	assert.False(t, IsKind(wrapped, KindNotFound))
}

func TestPublicMessage(t *testing.T) {
	e, _ := As(Validation("order_amount must be greater than 0", WithFields(map[string]string{"order_amount": "gt"})))
	assert.Equal(t, "order_amount must be greater than 0", e.Public())
	assert.Equal(t, "gt", e.Fields["order_amount"])

	up, _ := As(Upstream(errors.New("status=503"), "Payment initiation failed"))
	assert.Equal(t, "Payment initiation failed: status=503", up.Public())
}

func TestOperational(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want bool
	}{
		{Validation("bad"), false},
		{NotFound("missing"), false},
		{Upstream(errors.New("timeout"), "gateway failed"), true},
		{Persistence(errors.New("deadlock"), "save failed"), true},
		{New(KindInternal, nil, "boom"), true},
	} {
		e, _ := As(tt.err)
		assert.Equal(t, tt.want, e.Operational(), string(e.Kind))
	}
}

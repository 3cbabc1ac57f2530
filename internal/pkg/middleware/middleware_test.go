package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/app/repository/memrepo"
	"github.com/luminapay/schoolpay/internal/pkg/apperr"
)

func decodeError(t *testing.T, body io.Reader) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantFields bool
	}{
		{"validation", apperr.Validation("bad input", apperr.WithFields(map[string]string{"school_id": "school_id is required"})), 400, "validation_error", true},
		{"not found", apperr.NotFound("Transaction not found"), 404, "not_found", false},
		{"upstream", apperr.Upstream(errors.New("timeout"), "gateway failed"), 400, "upstream_error", false},
		{"persistence", apperr.Persistence(errors.New("lock wait timeout"), "failed to store webhook log"), 400, "persistence_error", false},
		{"fiber error", fiber.ErrMethodNotAllowed, 405, "validation_error", false},
		{"fiber not found", fiber.ErrNotFound, 404, "not_found", false},
		{"unknown", errors.New("boom"), 500, "internal_error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			res, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.StatusCode)

			body := decodeError(t, res.Body)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantKind, body.Error)
			assert.NotEmpty(t, body.Message)
			assert.Equal(t, tt.wantFields, body.Fields != nil)
		})
	}
}

func TestErrorHandler_HidesUnknownCause(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/", func(c *fiber.Ctx) error { return errors.New("dial tcp 10.0.0.1: refused") })

	res, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	body := decodeError(t, res.Body)
	assert.Equal(t, "Internal server error", body.Message)
}

func newAuthApp(t *testing.T) (*fiber.App, string, *memrepo.Store) {
	t.Helper()
	store := memrepo.New()
	client := &models.APIClient{Name: "test"}
	raw, err := client.IssueKey()
	require.NoError(t, err)
	require.NoError(t, store.Repositories().APIClient.Create(context.Background(), client))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(APIKeyAuth(store.Repositories().APIClient))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(CurrentAPIClient(c).Name)
	})
	return app, raw, store
}

func TestAPIKeyAuth(t *testing.T) {
	app, raw, _ := newAuthApp(t)

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"x-api-key", "X-API-Key", raw, 200},
		{"bearer", "Authorization", "Bearer " + raw, 200},
		{"missing", "", "", 401},
		{"wrong key", "X-API-Key", "spk_nope", 401},
		{"basic scheme", "Authorization", "Basic " + raw, 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			res, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.StatusCode)
			if tt.wantStatus == 200 {
				b, _ := io.ReadAll(res.Body)
				assert.Equal(t, "test", string(b))
			} else {
				assert.Equal(t, "unauthorized", decodeError(t, res.Body).Error)
			}
		})
	}
}

func TestAPIKeyAuth_RevokedKey(t *testing.T) {
	store := memrepo.New()
	client := &models.APIClient{Name: "old"}
	raw, err := client.IssueKey()
	require.NoError(t, err)
	client.Revoke()
	require.NoError(t, store.Repositories().APIClient.Create(context.Background(), client))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(APIKeyAuth(store.Repositories().APIClient))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(200) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-API-Key", raw)
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 401, res.StatusCode)
}

func TestRequestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(requestid.New())
	app.Use(RequestLogger(logger))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("fine") })
	app.Get("/missing", func(c *fiber.Ctx) error { return apperr.NotFound("nope") })

	res, err := app.Test(httptest.NewRequest("GET", "/ok", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	reqID := res.Header.Get(fiber.HeaderXRequestID)
	require.NotEmpty(t, reqID)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "started", entries[0].Message)
	assert.Equal(t, "completed", entries[1].Message)
	assert.Equal(t, reqID, entries[1].Data["req_id"])
	assert.Equal(t, 200, entries[1].Data["status"])
	assert.Equal(t, 4, entries[1].Data["bytes"])

	hook.Reset()
	res, err = app.Test(httptest.NewRequest("GET", "/missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 404, res.StatusCode)
	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "completed", last.Message)
	assert.Equal(t, 404, last.Data["status"])
}

package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/app/repository"
	"github.com/luminapay/schoolpay/internal/pkg/apperr"
)

// LocalAPIClient is the fiber.Ctx locals key holding the authenticated *models.APIClient.
const LocalAPIClient = "api_client"

// APIKeyAuth authenticates requests carrying an API key in X-API-Key or as a
// bearer token.
func APIKeyAuth(clients repository.APIClientRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return apperr.Unauthorized("Missing API key")
		}

		client, err := clients.GetActiveByKeyHash(c.UserContext(), models.HashAPIKey(apiKey))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Unauthorized("Invalid API key")
			}
			return apperr.Persistence(err, "API key verification failed")
		}

		// Refresh last-used timestamp best-effort.
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := clients.TouchLastUsed(ctx, client.ID, time.Now()); err != nil {
			logrus.WithField("req_id", RequestID(c)).Warnf("failed to update api key usage for client %d: %v", client.ID, err)
		}

		c.Locals(LocalAPIClient, client)
		return c.Next()
	}
}

// CurrentAPIClient returns the client stored by APIKeyAuth, or nil.
func CurrentAPIClient(c *fiber.Ctx) *models.APIClient {
	client, _ := c.Locals(LocalAPIClient).(*models.APIClient)
	return client
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

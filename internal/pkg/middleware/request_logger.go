package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RequestID returns the id assigned by the requestid middleware.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}

// RequestLogger logs the start and the completion of every request.
func RequestLogger(logger *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		entry := logger.WithFields(logrus.Fields{
			"req_id": RequestID(c),
			"method": c.Method(),
			"path":   c.Path(),
		})
		entry.Debug("started")

		err := c.Next()
		if err != nil {
			// let the error handler write the response so the status is final
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		entry.WithFields(logrus.Fields{
			"status":  c.Response().StatusCode(),
			"bytes":   len(c.Response().Body()),
			"latency": time.Since(start).String(),
		}).Info("completed")
		return nil
	}
}

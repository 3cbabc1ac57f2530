package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/luminapay/schoolpay/internal/pkg/apperr"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorHandler renders classified errors, fiber errors and unknown errors as
// ErrorResponse.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	resp := ErrorResponse{Error: string(apperr.KindInternal), Message: "Internal server error"}

	var fe *fiber.Error
	serverSide := true
	if e, ok := apperr.As(err); ok {
		status = e.Status()
		serverSide = e.Operational()
		resp.Error = string(e.Kind)
		resp.Message = e.Public()
		resp.Fields = e.Fields
	} else if errors.As(err, &fe) {
		status = fe.Code
		serverSide = status >= fiber.StatusInternalServerError
		resp.Error = fiberKind(fe.Code)
		resp.Message = fe.Message
	}

	entry := logrus.WithFields(logrus.Fields{
		"req_id": RequestID(c),
		"method": c.Method(),
		"path":   c.Path(),
		"status": status,
	})
	if serverSide {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithError(err).Info("request rejected")
	}

	return c.Status(status).JSON(resp)
}

func fiberKind(code int) string {
	switch {
	case code == fiber.StatusUnauthorized:
		return string(apperr.KindUnauthorized)
	case code == fiber.StatusNotFound:
		return string(apperr.KindNotFound)
	case code == fiber.StatusTooManyRequests:
		return "rate_limited"
	case code < fiber.StatusInternalServerError:
		return string(apperr.KindValidation)
	default:
		return string(apperr.KindInternal)
	}
}

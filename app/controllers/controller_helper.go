package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/luminapay/schoolpay/internal/pkg/apperr"
)

// queryInt reads an optional integer query parameter. Missing values yield
// 0 so the services apply their defaults; non-numeric values are rejected.
func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("Validation failed (numeric string is expected)", apperr.WithFields(map[string]string{
			key: key + " must be an integer",
		}))
	}
	return v, nil
}

// pageParams reads page and limit.
func pageParams(c *fiber.Ctx) (page, limit int, err error) {
	if page, err = queryInt(c, "page"); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(c, "limit"); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

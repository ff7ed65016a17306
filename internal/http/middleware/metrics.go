package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestObserver receives one observation per handled request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Metrics reports every request by its matched route pattern.
func Metrics(observer RequestObserver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		route := c.Route().Path
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
			if fe.Code == fiber.StatusNotFound {
				route = "unmatched"
			}
		}
		observer.ObserveRequest(c.Method(), route, status, time.Since(start))
		return err
	}
}

package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	sqlInjectionPattern = regexp.MustCompile(`(?i)(union|select|insert|update|delete|drop|create|alter|exec)\s`)
	xssPattern          = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=)`)
)

type Config struct {
	MaxNameLength      int
	MaxDrugsPerRequest int
	Logger             *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxNameLength == 0 {
		cfg.MaxNameLength = 200
	}
	if cfg.MaxDrugsPerRequest == 0 {
		cfg.MaxDrugsPerRequest = 20
	}

	return func(c *fiber.Ctx) error {
		if strings.Contains(c.Path(), "/api/v1/interactions") && c.Method() == "POST" {
			var req struct {
				Drugs []string `json:"drugs"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			if len(req.Drugs) > cfg.MaxDrugsPerRequest {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Too many drug names in one request",
				})
			}

			for _, name := range req.Drugs {
				if reason := invalidName(name, cfg.MaxNameLength); reason != "" {
					cfg.Logger.Warn("Rejected drug name",
						zap.String("ip", c.IP()),
						zap.String("reason", reason),
					)
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": reason,
					})
				}
			}
		}

		if q := c.Query("q"); q != "" && len(q) > cfg.MaxNameLength {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Search term exceeds maximum length",
			})
		}

		return c.Next()
	}
}

func invalidName(name string, maxLength int) string {
	if strings.TrimSpace(name) == "" {
		return "Drug names must not be empty"
	}
	if len(name) > maxLength {
		return "Drug name exceeds maximum length"
	}
	if sqlInjectionPattern.MatchString(name) || xssPattern.MatchString(name) {
		return "Invalid drug name content"
	}
	return ""
}

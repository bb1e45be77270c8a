package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/med-tracker/backend/internal/cache/memory"
	"github.com/med-tracker/backend/pkg/logger"
)

type CacheHandler struct {
	cache *memory.Cache
}

func NewCacheHandler(cache *memory.Cache) *CacheHandler {
	return &CacheHandler{cache: cache}
}

func (h *CacheHandler) Stats(c *fiber.Ctx) error {
	stats := h.cache.Stats()

	tiers := make(fiber.Map, len(stats))
	for tier, s := range stats {
		tiers[string(tier)] = fiber.Map{
			"hits":     s.Hits,
			"misses":   s.Misses,
			"hit_rate": s.HitRate,
			"entries":  s.Entries,
		}
	}

	return c.JSON(fiber.Map{"tiers": tiers})
}

func (h *CacheHandler) Clear(c *fiber.Ctx) error {
	h.cache.Clear()
	logger.Info("Cache cleared via API")
	return c.JSON(fiber.Map{"status": "cleared"})
}

package handlers

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/med-tracker/backend/internal/cache/memory"
	"github.com/med-tracker/backend/internal/query"
	"github.com/med-tracker/backend/internal/storage/models"
	"github.com/med-tracker/backend/internal/storage/sqlite"
	"github.com/med-tracker/backend/pkg/logger"
	"github.com/med-tracker/backend/pkg/utils"
)

type DrugHandler struct {
	engine *query.Engine
	cache  *memory.Cache
}

func NewDrugHandler(engine *query.Engine, cache *memory.Cache) *DrugHandler {
	return &DrugHandler{
		engine: engine,
		cache:  cache,
	}
}

func (h *DrugHandler) Search(c *fiber.Ctx) error {
	term := c.Query("q")
	limit := c.QueryInt("limit", 0)

	results, err := h.engine.Search(term, limit)
	if err != nil {
		return queryError(c, "search", err)
	}

	summaries := make([]fiber.Map, 0, len(results))
	for _, s := range results {
		summaries = append(summaries, fiber.Map{
			"id":   s.ID,
			"name": s.Name,
		})
	}

	return c.JSON(fiber.Map{
		"results": summaries,
		"count":   len(summaries),
	})
}

func (h *DrugHandler) GetDetails(c *fiber.Ctx) error {
	name := pathName(c)
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Drug name is required",
		})
	}

	cacheKey := utils.NormalizeName(name)
	if cached, ok := h.cache.Get(memory.TierDrug, cacheKey); ok {
		return c.JSON(drugResponse(cached.(*models.Drug), true))
	}

	drug, err := h.engine.GetDetails(name)
	if err != nil {
		return queryError(c, "details", err)
	}
	if drug == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No drug found for name",
			"name":  name,
		})
	}

	h.cache.Put(memory.TierDrug, cacheKey, drug)

	return c.JSON(drugResponse(drug, false))
}

func (h *DrugHandler) GetFoodInteractions(c *fiber.Ctx) error {
	name := pathName(c)
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Drug name is required",
		})
	}

	results, err := h.engine.GetFoodInteractions(name)
	if err != nil {
		return queryError(c, "food_interactions", err)
	}

	return c.JSON(fiber.Map{
		"name":              name,
		"food_interactions": results,
		"count":             len(results),
	})
}

func (h *DrugHandler) Status(c *fiber.Ctx) error {
	status, err := h.engine.Status()
	if err != nil {
		logger.Error("Failed to read store status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read store status",
		})
	}

	return c.JSON(fiber.Map{
		"initialized": status.Initialized,
		"drugs":       status.Drugs,
	})
}

func drugResponse(drug *models.Drug, cached bool) fiber.Map {
	return fiber.Map{
		"id":                  drug.ID,
		"name":                drug.Name,
		"description":         drug.Description,
		"indication":          drug.Indication,
		"mechanism_of_action": drug.MechanismOfAction,
		"toxicity":            drug.Toxicity,
		"cached":              cached,
	}
}

func pathName(c *fiber.Ctx) string {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return c.Params("name")
	}
	return name
}

func queryError(c *fiber.Ctx, operation string, err error) error {
	if errors.Is(err, sqlite.ErrStoreNotInitialized) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Drug store not initialized",
			"hint":  "Run the ingest command to build the store from the DrugBank export",
		})
	}

	logger.Error("Query failed", zap.String("operation", operation), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to process query",
	})
}

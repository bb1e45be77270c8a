package handlers

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/med-tracker/backend/internal/cache/memory"
	"github.com/med-tracker/backend/internal/metrics"
	"github.com/med-tracker/backend/internal/query"
	"github.com/med-tracker/backend/internal/storage/models"
	"github.com/med-tracker/backend/pkg/logger"
	"github.com/med-tracker/backend/pkg/utils"
)

type InteractionHandler struct {
	engine *query.Engine
	cache  *memory.Cache
}

func NewInteractionHandler(engine *query.Engine, cache *memory.Cache) *InteractionHandler {
	return &InteractionHandler{
		engine: engine,
		cache:  cache,
	}
}

func (h *InteractionHandler) CheckInteractions(c *fiber.Ctx) error {
	var req struct {
		Drugs []string `json:"drugs"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Drugs) < 2 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least two drug names are required",
		})
	}

	requestID := uuid.New().String()

	// Full-response tier: the fingerprint is order-independent so the
	// same set of names hits the same entry.
	fingerprint := requestFingerprint(req.Drugs)
	if cached, ok := h.cache.Get(memory.TierQuery, fingerprint); ok {
		views := cached.([]models.InteractionView)
		return c.JSON(interactionsResponse(requestID, views, true))
	}

	// Pair tier: a two-name request maps to a single pair entry.
	var pairKey string
	if len(req.Drugs) == 2 {
		pairKey = utils.HashPair(req.Drugs[0], req.Drugs[1])
		if cached, ok := h.cache.Get(memory.TierInteraction, pairKey); ok {
			views := cached.([]models.InteractionView)
			return c.JSON(interactionsResponse(requestID, views, true))
		}
	}

	views, err := h.engine.GetInteractions(req.Drugs)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("interactions", "error").Inc()
		return queryError(c, "interactions", err)
	}
	metrics.QueryTotal.WithLabelValues("interactions", "success").Inc()

	h.cache.Put(memory.TierQuery, fingerprint, views)
	if pairKey != "" {
		h.cache.Put(memory.TierInteraction, pairKey, views)
	}

	logger.Info("Interaction check served",
		zap.String("request_id", requestID),
		zap.Int("drugs", len(req.Drugs)),
		zap.Int("interactions", len(views)),
	)

	return c.JSON(interactionsResponse(requestID, views, false))
}

func requestFingerprint(names []string) string {
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		normalized = append(normalized, utils.NormalizeName(name))
	}
	sort.Strings(normalized)
	return utils.HashQuery(strings.Join(normalized, ","))
}

func interactionsResponse(requestID string, views []models.InteractionView, cached bool) fiber.Map {
	interactions := make([]fiber.Map, 0, len(views))
	for _, v := range views {
		interactions = append(interactions, fiber.Map{
			"drug_id":         v.DrugID,
			"drug_name":       v.DrugName,
			"other_drug_id":   v.OtherDrugID,
			"other_drug_name": v.OtherDrugName,
			"description":     v.Description,
		})
	}

	return fiber.Map{
		"id":           requestID,
		"interactions": interactions,
		"count":        len(interactions),
		"cached":       cached,
	}
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/dto"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/service"
)

// AdminHandler exposes maintenance endpoints.
type AdminHandler struct {
	seeder  *service.SeedService
	metrics *observability.Metrics
}

// NewAdminHandler constructs handler. metrics may be nil.
func NewAdminHandler(seeder *service.SeedService, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{seeder: seeder, metrics: metrics}
}

// Seed POST /admin/seed.
func (h *AdminHandler) Seed(c *fiber.Ctx) error {
	inserted, err := h.seeder.SeedIfEmpty(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SeedResponse{Inserted: inserted}})
}

// Metrics GET /admin/metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/api/dto"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/service"
)

// databaseColumns is the column order of the table view.
var databaseColumns = []string{
	"id", "name", "position", "department", "email", "phone", "location",
	"problem_type", "problem_detail", "priority", "attachments", "status",
	"technician_note", "createdAt",
}

// DatabaseHandler serves the raw table view for privileged users.
type DatabaseHandler struct {
	service *service.RepairService
	logger  *zap.Logger
}

// NewDatabaseHandler constructs handler.
func NewDatabaseHandler(repairService *service.RepairService, logger *zap.Logger) *DatabaseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseHandler{service: repairService, logger: logger}
}

// View GET /database. Total comes from the backend count and falls back
// to the number of rows listed when counting fails.
func (h *DatabaseHandler) View(c *fiber.Ctx) error {
	rows := h.service.List(c.UserContext(), domain.RequestFilter{})
	total, err := h.service.Count(c.UserContext())
	if err != nil {
		h.logger.Warn("database view count failed", zap.Error(err))
		total = len(rows)
	}
	return c.JSON(dto.DatabaseView{Data: rows, Total: total, Columns: databaseColumns})
}

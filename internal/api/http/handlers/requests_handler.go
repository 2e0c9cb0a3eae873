package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/dto"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/service"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// RequestsHandler manages repair request endpoints.
type RequestsHandler struct {
	service *service.RepairService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(repairService *service.RepairService) *RequestsHandler {
	return &RequestsHandler{service: repairService}
}

// Create POST /requests.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateRepairRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	request, err := h.service.Submit(c.UserContext(), auth.PrincipalFromContext(c), req.ToDomain())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": request})
}

// List GET /requests. A failed read yields an empty listing.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	filter, err := parseRequestFilter(c)
	if err != nil {
		return err
	}
	records := h.service.List(c.UserContext(), filter)
	return c.JSON(dto.RepairRequestList{Data: records, Total: len(records)})
}

// Get GET /requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	request, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": request})
}

// UpdateStatus PATCH /requests/:id/status.
func (h *RequestsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		return fmt.Errorf("%w: %q", service.ErrInvalidStatus, req.Status)
	}
	request, err := h.service.UpdateStatus(c.UserContext(), auth.PrincipalFromContext(c), c.Params("id"), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": request})
}

// UpdateNote PATCH /requests/:id/note.
func (h *RequestsHandler) UpdateNote(c *fiber.Ctx) error {
	var req dto.NoteUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	request, err := h.service.UpdateNote(c.UserContext(), auth.PrincipalFromContext(c), c.Params("id"), req.TechnicianNote)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": request})
}

// parseRequestFilter reads ?status= and ?q=. An empty status or "all"
// matches every status.
func parseRequestFilter(c *fiber.Ctx) (domain.RequestFilter, error) {
	filter := domain.RequestFilter{Search: strings.TrimSpace(c.Query("q"))}
	raw := strings.TrimSpace(c.Query("status"))
	if raw == "" || strings.EqualFold(raw, "all") {
		return filter, nil
	}
	status, ok := domain.ParseStatus(raw)
	if !ok {
		return filter, apperrors.NewValidationError("invalid status filter", map[string]any{"status": raw})
	}
	filter.Status = status
	return filter, nil
}

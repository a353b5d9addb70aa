package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/defect-dispatch/internal/api/dto"
	"github.com/spec-kit/defect-dispatch/internal/tracking"
	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

// DevicesHandler receives permission answers and position samples from
// responder devices.
type DevicesHandler struct {
	hub      *tracking.DeviceHub
	validate *validator.Validate
}

// NewDevicesHandler constructs handler.
func NewDevicesHandler(hub *tracking.DeviceHub, validate *validator.Validate) *DevicesHandler {
	return &DevicesHandler{hub: hub, validate: validate}
}

// SetPermission PUT /devices/me/permission.
func (h *DevicesHandler) SetPermission(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.LocationPermissionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(h.validate, req); err != nil {
		return err
	}
	h.hub.SetPermission(actor.ID, *req.Granted)
	return c.JSON(fiber.Map{"data": fiber.Map{"granted": *req.Granted}})
}

// PushPosition POST /devices/me/positions.
func (h *DevicesHandler) PushPosition(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.PositionSampleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(h.validate, req); err != nil {
		return err
	}
	recordedAt := time.Now().UTC()
	if req.RecordedAt != nil {
		recordedAt = req.RecordedAt.UTC()
	}
	delivered := h.hub.Publish(actor.ID, tracking.Sample{
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		RecordedAt: recordedAt,
	})
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"sessions": delivered}})
}

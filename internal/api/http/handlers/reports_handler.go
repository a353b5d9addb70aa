package handlers

import (
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/defect-dispatch/internal/api/dto"
	"github.com/spec-kit/defect-dispatch/internal/auth"
	"github.com/spec-kit/defect-dispatch/internal/domain"
	"github.com/spec-kit/defect-dispatch/internal/geo"
	"github.com/spec-kit/defect-dispatch/internal/service"
	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

// ReportsHandler exposes the report lifecycle.
type ReportsHandler struct {
	dispatch   *service.DispatchService
	visibility *service.VisibilityService
	history    *service.HistoryService
	validate   *validator.Validate
}

// NewReportsHandler constructs handler.
func NewReportsHandler(dispatch *service.DispatchService, visibility *service.VisibilityService, history *service.HistoryService, validate *validator.Validate) *ReportsHandler {
	return &ReportsHandler{dispatch: dispatch, visibility: visibility, history: history, validate: validate}
}

// Submit POST /reports.
func (h *ReportsHandler) Submit(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(h.validate, req); err != nil {
		return err
	}
	report, err := h.dispatch.Submit(c.UserContext(), actor, req.ToInput())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": report})
}

// List GET /reports.
func (h *ReportsHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	reports, err := h.visibility.ListVisible(c.UserContext(), actor.Role, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reports})
}

// Get GET /reports/:id?lat=&lng=&speed_mph=.
func (h *ReportsHandler) Get(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	reference, err := parseReference(c)
	if err != nil {
		return err
	}
	speed, err := parseSpeed(c)
	if err != nil {
		return err
	}
	view, err := h.dispatch.GetReport(c.UserContext(), c.Params("id"), actor, reference, speed)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReportDetail(view)})
}

// History GET /reports/:id/history.
func (h *ReportsHandler) History(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	entries, err := h.history.History(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []domain.ReportHistory{}
	}
	return c.JSON(fiber.Map{"data": entries})
}

// Accept POST /reports/:id/accept.
func (h *ReportsHandler) Accept(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	report, err := h.dispatch.Accept(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// BeginTracking POST /reports/:id/tracking.
func (h *ReportsHandler) BeginTracking(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	result, err := h.dispatch.BeginTracking(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BeginTrackingResponse{
		Report:   *result.Report,
		Tracking: result.Tracking,
	}})
}

// Complete POST /reports/:id/complete.
func (h *ReportsHandler) Complete(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	report, err := h.dispatch.Complete(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.UserID == "" {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

func parseReference(c *fiber.Ctx) (*geo.Point, error) {
	latRaw, lngRaw := c.Query("lat"), c.Query("lng")
	if latRaw == "" && lngRaw == "" {
		return nil, nil
	}
	if latRaw == "" || lngRaw == "" {
		return nil, apperrors.NewInvalidCoordinate("lat and lng must be given together", nil)
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return nil, apperrors.NewInvalidCoordinate("lat is not a number", map[string]any{"lat": latRaw})
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil {
		return nil, apperrors.NewInvalidCoordinate("lng is not a number", map[string]any{"lng": lngRaw})
	}
	p := geo.Point{Latitude: lat, Longitude: lng}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// speed_mph bounds for ETA queries.
const (
	minSpeedMph = 0.1
	maxSpeedMph = 1000
)

func parseSpeed(c *fiber.Ctx) (float64, error) {
	raw := c.Query("speed_mph")
	if raw == "" {
		return 0, nil
	}
	speed, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(speed) || speed < minSpeedMph || speed > maxSpeedMph {
		return 0, apperrors.NewValidationError("speed_mph out of range", map[string]any{
			"speed_mph": raw,
			"min":       minSpeedMph,
			"max":       maxSpeedMph,
		})
	}
	return speed, nil
}

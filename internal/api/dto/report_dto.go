package dto

import (
	"github.com/spec-kit/defect-dispatch/internal/domain"
	"github.com/spec-kit/defect-dispatch/internal/service"
)

// CoordinatesRequest is a WGS84 position.
type CoordinatesRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// CreateReportRequest payload.
type CreateReportRequest struct {
	SubjectID    string              `json:"subjectId" validate:"required,max=128"`
	Category     string              `json:"category" validate:"required,oneof=general specialized"`
	Severity     string              `json:"severity" validate:"required,oneof=minor moderate major critical"`
	Description  string              `json:"description" validate:"max=4000"`
	LocationText string              `json:"locationText" validate:"max=512"`
	Coordinates  *CoordinatesRequest `json:"coordinates"`
}

// ToInput converts the payload for the dispatch service.
func (r CreateReportRequest) ToInput() service.ReportSubmitInput {
	input := service.ReportSubmitInput{
		SubjectID:    r.SubjectID,
		Category:     domain.ReportCategory(r.Category),
		Severity:     domain.Severity(r.Severity),
		Description:  r.Description,
		LocationText: r.LocationText,
	}
	if r.Coordinates != nil {
		input.Coordinates = &domain.Coordinates{Latitude: r.Coordinates.Latitude, Longitude: r.Coordinates.Longitude}
	}
	return input
}

// ReportDetail is a report with read-time distance and ETA.
type ReportDetail struct {
	domain.Report
	DistanceMiles *float64 `json:"distanceMiles,omitempty"`
	EtaMinutes    *int     `json:"etaMinutes,omitempty"`
}

// NewReportDetail flattens a service view.
func NewReportDetail(view *service.ReportView) ReportDetail {
	return ReportDetail{
		Report:        *view.Report,
		DistanceMiles: view.DistanceMiles,
		EtaMinutes:    view.EtaMinutes,
	}
}

// BeginTrackingResponse reports the in_progress report and tracking state.
type BeginTrackingResponse struct {
	Report   domain.Report         `json:"report"`
	Tracking service.TrackingState `json:"tracking"`
}

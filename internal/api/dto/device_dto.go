package dto

import "time"

// LocationPermissionRequest records the device's location permission answer.
type LocationPermissionRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

// PositionSampleRequest is one device position reading.
type PositionSampleRequest struct {
	Latitude   float64    `json:"latitude" validate:"latitude"`
	Longitude  float64    `json:"longitude" validate:"longitude"`
	RecordedAt *time.Time `json:"recordedAt"`
}

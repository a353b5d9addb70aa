package domain

import "time"

// ReportStatus enumerates lifecycle states for defect reports.
type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusAccepted   ReportStatus = "accepted"
	ReportStatusInProgress ReportStatus = "in_progress"
	ReportStatusCompleted  ReportStatus = "completed"
)

var statusRank = map[ReportStatus]int{
	ReportStatusPending:    0,
	ReportStatusAccepted:   1,
	ReportStatusInProgress: 2,
	ReportStatusCompleted:  3,
}

// Rank orders statuses along the lifecycle. Unknown statuses rank last.
func (s ReportStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return len(statusRank)
}

// IsValid checks if the status is one of the allowed values.
func (s ReportStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminal returns true once no further transition is allowed.
func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusCompleted
}

// ReportCategory decides which responder roles may see and accept a report.
type ReportCategory string

const (
	ReportCategoryGeneral     ReportCategory = "general"
	ReportCategorySpecialized ReportCategory = "specialized"
)

// AllCategories lists every category, in display order.
var AllCategories = []ReportCategory{ReportCategoryGeneral, ReportCategorySpecialized}

// IsValid checks if the category is known.
func (c ReportCategory) IsValid() bool {
	return c == ReportCategoryGeneral || c == ReportCategorySpecialized
}

// Severity is ordered: minor < moderate < major < critical.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityMinor:    0,
	SeverityModerate: 1,
	SeverityMajor:    2,
	SeverityCritical: 3,
}

// IsValid checks if the severity is known.
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	a, okA := severityRank[s]
	b, okB := severityRank[other]
	return okA && okB && a >= b
}

// Coordinates is a WGS84 position in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LiveLocation is the last published responder position.
type LiveLocation struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Coordinates drops the timestamp.
func (l LiveLocation) Coordinates() Coordinates {
	return Coordinates{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Report is the aggregate for a filed equipment defect.
type Report struct {
	ID           string         `json:"id"`
	SubjectID    string         `json:"subjectId"`
	ReportedBy   string         `json:"reportedBy"`
	ReportedAt   time.Time      `json:"reportedAt"`
	Category     ReportCategory `json:"category"`
	Severity     Severity       `json:"severity"`
	Description  string         `json:"description"`
	LocationText string         `json:"locationText"`
	Coordinates  *Coordinates   `json:"coordinates,omitempty"`
	Status       ReportStatus   `json:"status"`
	AssignedTo   *string        `json:"assignedTo,omitempty"`
	AcceptedAt   *time.Time     `json:"acceptedAt,omitempty"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	LiveLocation *LiveLocation  `json:"liveLocation,omitempty"`
}

// IsAssignedTo checks if the report is assigned to the given responder.
func (r *Report) IsAssignedTo(responderID string) bool {
	return r.AssignedTo != nil && *r.AssignedTo == responderID
}

// Clone returns a deep copy so callers never share pointers with a store.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	if r.Coordinates != nil {
		c := *r.Coordinates
		out.Coordinates = &c
	}
	if r.AssignedTo != nil {
		a := *r.AssignedTo
		out.AssignedTo = &a
	}
	if r.AcceptedAt != nil {
		t := *r.AcceptedAt
		out.AcceptedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	if r.LiveLocation != nil {
		l := *r.LiveLocation
		out.LiveLocation = &l
	}
	return &out
}

// ReportPatch describes the fields a single transition writes.
type ReportPatch struct {
	Status            ReportStatus
	AssignedTo        *string
	AcceptedAt        *time.Time
	CompletedAt       *time.Time
	ClearLiveLocation bool
}

// Apply writes the patch onto r. AssignedTo is only written while unset.
func (p ReportPatch) Apply(r *Report) {
	r.Status = p.Status
	if p.AssignedTo != nil && r.AssignedTo == nil {
		a := *p.AssignedTo
		r.AssignedTo = &a
	}
	if p.AcceptedAt != nil {
		t := *p.AcceptedAt
		r.AcceptedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		r.CompletedAt = &t
	}
	if p.ClearLiveLocation {
		r.LiveLocation = nil
	}
}

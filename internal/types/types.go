package types

import (
	"bytes"
	"math"
	"time"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ValidSeverity reports whether s is one of the known severity values.
func ValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusCleaned    Status = "cleaned"
)

var statusLabels = map[Status]string{
	StatusPending:    "Pending Review",
	StatusApproved:   "Approved",
	StatusRejected:   "Rejected",
	StatusInProgress: "Cleanup In Progress",
	StatusCleaned:    "Cleaned",
}

// Label returns the human-readable display name for a status.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// PublicStatuses are the report statuses visible on the public map.
var PublicStatuses = []Status{StatusApproved, StatusInProgress, StatusCleaned}

// IsPublicStatus reports whether s is one of the publicly listed statuses.
func IsPublicStatus(s string) bool {
	for _, ps := range PublicStatuses {
		if Status(s) == ps {
			return true
		}
	}
	return false
}

// GeoCoordinate is a WGS84 point in decimal degrees.
type GeoCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Rounded returns the coordinate rounded to 6 decimal places, the
// precision reports are persisted with.
func (c GeoCoordinate) Rounded() GeoCoordinate {
	return GeoCoordinate{
		Latitude:  math.Round(c.Latitude*1e6) / 1e6,
		Longitude: math.Round(c.Longitude*1e6) / 1e6,
	}
}

// ExifSnapshot is a JSON-safe projection of an image's EXIF fields,
// keyed by tag name. Values are scalars or lists of scalars.
type ExifSnapshot map[string]interface{}

// RawUpload is an uploaded photo as received from the client, before
// any normalization.
type RawUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// Reader returns a fresh seekable reader over the upload bytes.
func (u *RawUpload) Reader() *bytes.Reader {
	return bytes.NewReader(u.Data)
}

// NormalizedPhoto is the re-encoded storage form of an upload: JPEG,
// EXIF stripped, longest edge bounded.
type NormalizedPhoto struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

type Report struct {
	ID          string       `json:"id"`
	AuthorID    string       `json:"author_id"`
	PhotoKey    string       `json:"photo_key"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	Category    Category     `json:"category"`
	Severity    Severity     `json:"severity"`
	Status      Status       `json:"status"`
	Description string       `json:"description"`
	ExifData    ExifSnapshot `json:"exif_data,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ReportFilters narrows QueryReports results. Zero-value fields are
// ignored; non-zero fields compose with logical AND.
type ReportFilters struct {
	Statuses      []Status
	CategorySlugs []string
	Severity      Severity
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

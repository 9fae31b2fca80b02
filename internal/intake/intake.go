// Package intake runs the submission pipeline: photo resolution,
// EXIF geolocation, location policy, normalization, and persistence,
// with staging so a failed attempt never loses the uploaded photo.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cleanmap/reports-service/internal/config"
	"github.com/cleanmap/reports-service/internal/events"
	"github.com/cleanmap/reports-service/internal/exif"
	"github.com/cleanmap/reports-service/internal/photo"
	"github.com/cleanmap/reports-service/internal/staging"
	"github.com/cleanmap/reports-service/internal/storage"
	"github.com/cleanmap/reports-service/internal/types"
)

// BlobStore is the photo storage collaborator.
type BlobStore interface {
	StorePhoto(ctx context.Context, authorID string, photo *types.NormalizedPhoto) (string, error)
	RemovePhoto(ctx context.Context, objectKey string) error
}

// Request is one submission attempt, already parsed out of the
// transport. Photo and TempToken are alternatives: a fresh upload
// wins; the token resumes a previously staged one.
type Request struct {
	AuthorID    string
	Photo       *types.RawUpload
	TempToken   string
	Pin         *types.GeoCoordinate
	Category    string
	Severity    string
	Description string
}

// Result is the outcome of a submission attempt. Either ReportID is
// set, or Rejected is true and the error fields describe a
// recoverable, user-correctable failure. TempToken, when present,
// must be echoed back on the retry so the photo is not re-uploaded.
type Result struct {
	ReportID    string
	Rejected    bool
	FieldErrors map[string]string
	FormError   string
	TempToken   string
}

type Orchestrator struct {
	staging   staging.Store
	storage   storage.Storage
	blobs     BlobStore
	publisher events.Publisher

	maxUploadSize int64
	allowedTypes  []string
	maxEdge       int
	quality       int

	// seams for tests; default to the real implementations
	extract   func(io.ReadSeeker) (*types.GeoCoordinate, types.ExifSnapshot, exif.Outcome)
	normalize func(io.ReadSeeker, int, int) (*types.NormalizedPhoto, error)
}

func NewOrchestrator(st staging.Store, db storage.Storage, blobs BlobStore, pub events.Publisher, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		staging:       st,
		storage:       db,
		blobs:         blobs,
		publisher:     pub,
		maxUploadSize: cfg.Media.MaxUploadSize,
		allowedTypes:  cfg.Media.AllowedMimeTypes,
		maxEdge:       cfg.Media.MaxEdge,
		quality:       cfg.Media.JPEGQuality,
		extract:       exif.Extract,
		normalize:     photo.Normalize,
	}
}

// Submit runs one submission attempt. A returned error is fatal and
// unexpected; every recoverable condition comes back as a rejected
// Result instead.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Result, error) {
	// opportunistic housekeeping; failure must not block the attempt
	if err := o.staging.Sweep(); err != nil {
		slog.Warn("staging sweep failed", slog.String("error", err.Error()))
	}

	fieldErrs := make(map[string]string)

	severity := req.Severity
	if severity == "" {
		severity = string(types.SeverityMedium)
	}
	if !types.ValidSeverity(severity) {
		fieldErrs["severity"] = "Severity must be one of low, medium, or high."
	}

	if req.Category == "" {
		fieldErrs["category"] = "Please choose a category."
	}

	// resolve the photo: fresh upload first, then the staged one
	upload := req.Photo
	usedToken := ""
	tokenExpired := false
	if upload == nil && req.TempToken != "" {
		staged, err := o.staging.Retrieve(req.TempToken)
		if err != nil {
			return nil, fmt.Errorf("retrieve staged upload: %w", err)
		}
		if staged == nil {
			tokenExpired = true
		} else {
			upload = staged
			usedToken = req.TempToken
		}
	}

	if upload == nil {
		if tokenExpired {
			fieldErrs["photo"] = "Your previously uploaded photo has expired. Please select it again."
		} else {
			fieldErrs["photo"] = "A photo is required."
		}
		return rejected(fieldErrs, "", ""), nil
	}

	// photo-field validation: a bad photo is never worth staging
	if upload.Size > o.maxUploadSize {
		fieldErrs["photo"] = fmt.Sprintf("Photo must be under %d MB.", o.maxUploadSize/(1024*1024))
		return rejected(fieldErrs, "", ""), nil
	}
	if !o.allowedType(upload.ContentType) {
		fieldErrs["photo"] = "Unsupported file type. Please upload a JPEG, PNG, or WebP image."
		return rejected(fieldErrs, "", ""), nil
	}

	var category *types.Category
	if req.Category != "" {
		var err error
		category, err = o.storage.GetCategoryBySlug(req.Category)
		if err != nil {
			return nil, fmt.Errorf("look up category: %w", err)
		}
		if category == nil {
			fieldErrs["category"] = "Unknown category."
		}
	}

	if len(fieldErrs) > 0 {
		// the photo itself is fine; park it so the retry skips re-upload
		return rejected(fieldErrs, "", o.stageForRetry(upload, usedToken)), nil
	}

	// metadata must come off the original bytes, normalization strips it
	exifCoord, snapshot, _ := o.extract(upload.Reader())

	location, err := ResolveLocation(req.Pin, exifCoord)
	if err != nil {
		return rejected(nil,
			"No location found. Please place a pin on the map or upload a photo with GPS data.",
			o.stageForRetry(upload, usedToken)), nil
	}
	location = location.Rounded()

	normalized, err := o.normalize(upload.Reader(), o.maxEdge, o.quality)
	if err != nil {
		if errors.Is(err, photo.ErrInvalidImage) {
			fieldErrs["photo"] = "The file could not be read as an image. Please choose a different photo."
			return rejected(fieldErrs, "", ""), nil
		}
		return nil, err
	}

	photoKey, err := o.blobs.StorePhoto(ctx, req.AuthorID, normalized)
	if err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}

	report := &types.Report{
		AuthorID:    req.AuthorID,
		PhotoKey:    photoKey,
		Latitude:    location.Latitude,
		Longitude:   location.Longitude,
		Category:    *category,
		Severity:    types.Severity(severity),
		Status:      types.StatusPending,
		Description: req.Description,
		ExifData:    snapshot,
		CreatedAt:   time.Now().UTC(),
	}

	reportID, err := o.storage.SaveReport(report)
	if err != nil {
		// compensate the orphaned photo object, best effort
		if rmErr := o.blobs.RemovePhoto(ctx, photoKey); rmErr != nil {
			slog.Error("failed to remove orphaned photo",
				slog.String("photo_key", photoKey), slog.String("error", rmErr.Error()))
		}
		return nil, fmt.Errorf("save report: %w", err)
	}

	if usedToken != "" {
		if err := o.staging.Discard(usedToken); err != nil {
			slog.Warn("failed to discard staged upload",
				slog.String("token", usedToken), slog.String("error", err.Error()))
		}
	}

	if o.publisher != nil {
		o.publisher.PublishReportSubmitted(reportID, req.AuthorID, category.Slug, severity)
	}

	slog.Info("Report submitted",
		slog.String("report_id", reportID), slog.String("author_id", req.AuthorID))

	return &Result{ReportID: reportID}, nil
}

func (o *Orchestrator) allowedType(contentType string) bool {
	for _, allowed := range o.allowedTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

// stageForRetry preserves the photo across a failed attempt. An
// already-staged photo keeps its token so retries do not pile up
// duplicate files. Staging failure degrades to a plain re-upload.
func (o *Orchestrator) stageForRetry(upload *types.RawUpload, existingToken string) string {
	if existingToken != "" {
		return existingToken
	}
	token, err := o.staging.Stage(upload)
	if err != nil {
		slog.Warn("failed to stage upload for retry", slog.String("error", err.Error()))
		return ""
	}
	return token
}

func rejected(fieldErrs map[string]string, formErr, token string) *Result {
	if len(fieldErrs) == 0 {
		fieldErrs = nil
	}
	return &Result{
		Rejected:    true,
		FieldErrors: fieldErrs,
		FormError:   formErr,
		TempToken:   token,
	}
}

package intake

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cleanmap/reports-service/internal/config"
	"github.com/cleanmap/reports-service/internal/exif"
	"github.com/cleanmap/reports-service/internal/photo"
	"github.com/cleanmap/reports-service/internal/staging"
	"github.com/cleanmap/reports-service/internal/types"
)

type fakeStorage struct {
	saved       []*types.Report
	saveErr     error
	categories  map[string]*types.Category
	categoryErr error
}

func (f *fakeStorage) SaveReport(report *types.Report) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = append(f.saved, report)
	return "42", nil
}

func (f *fakeStorage) QueryReports(filters types.ReportFilters) ([]types.Report, error) {
	return nil, nil
}

func (f *fakeStorage) GetCategoryBySlug(slug string) (*types.Category, error) {
	if f.categoryErr != nil {
		return nil, f.categoryErr
	}
	return f.categories[slug], nil
}

func (f *fakeStorage) ListCategories() ([]types.Category, error) { return nil, nil }

func (f *fakeStorage) CreateUser(email, password string) (string, error) { return "", nil }

func (f *fakeStorage) GetUserByEmail(email string) (string, string, error) { return "", "", nil }

type fakeBlobs struct {
	stored   int
	removed  []string
	storeErr error
}

func (f *fakeBlobs) StorePhoto(ctx context.Context, authorID string, p *types.NormalizedPhoto) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	f.stored++
	return "reports/" + authorID + "/photo.jpg", nil
}

func (f *fakeBlobs) RemovePhoto(ctx context.Context, objectKey string) error {
	f.removed = append(f.removed, objectKey)
	return nil
}

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) PublishReportSubmitted(reportID, authorID, category, severity string) error {
	f.published = append(f.published, reportID)
	return nil
}

type testHarness struct {
	orch    *Orchestrator
	staging *staging.MemStore
	storage *fakeStorage
	blobs   *fakeBlobs
	pub     *fakePublisher
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	st := staging.NewMemStore()
	db := &fakeStorage{
		categories: map[string]*types.Category{
			"illegal-dumping": {ID: "1", Name: "Illegal Dumping", Slug: "illegal-dumping", Color: "#d32f2f"},
		},
	}
	blobs := &fakeBlobs{}
	pub := &fakePublisher{}

	cfg := &config.Config{}
	cfg.Media.MaxUploadSize = 20 * 1024 * 1024
	cfg.Media.AllowedMimeTypes = []string{"image/jpeg", "image/png", "image/webp"}
	cfg.Media.MaxEdge = 1920
	cfg.Media.JPEGQuality = 85

	orch := NewOrchestrator(st, db, blobs, pub, cfg)

	// stub the image pipeline: the exif and photo packages test the
	// real implementations against actual image bytes
	orch.extract = func(io.ReadSeeker) (*types.GeoCoordinate, types.ExifSnapshot, exif.Outcome) {
		return nil, nil, exif.OutcomeNoMetadata
	}
	orch.normalize = func(io.ReadSeeker, int, int) (*types.NormalizedPhoto, error) {
		return &types.NormalizedPhoto{Data: []byte("jpeg"), ContentType: "image/jpeg", Width: 640, Height: 480}, nil
	}

	return &testHarness{orch: orch, staging: st, storage: db, blobs: blobs, pub: pub}
}

func jpegUpload() *types.RawUpload {
	data := []byte("pretend jpeg bytes")
	return &types.RawUpload{
		Filename:    "report.jpg",
		ContentType: "image/jpeg",
		Size:        int64(len(data)),
		Data:        data,
	}
}

func validRequest() Request {
	return Request{
		AuthorID:    "7",
		Photo:       jpegUpload(),
		Pin:         &types.GeoCoordinate{Latitude: 40.7128, Longitude: -74.0060},
		Category:    "illegal-dumping",
		Severity:    "high",
		Description: "overflowing bins",
	}
}

func TestSubmit_SuccessWithPin(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Rejected {
		t.Fatalf("unexpected rejection: %+v", res)
	}
	if res.ReportID != "42" {
		t.Errorf("report id = %q, want 42", res.ReportID)
	}

	if len(h.storage.saved) != 1 {
		t.Fatalf("saved %d reports, want 1", len(h.storage.saved))
	}
	saved := h.storage.saved[0]
	if saved.Latitude != 40.7128 || saved.Longitude != -74.0060 {
		t.Errorf("location = (%v, %v), want the pin", saved.Latitude, saved.Longitude)
	}
	if saved.Status != types.StatusPending {
		t.Errorf("status = %q, want pending", saved.Status)
	}
	if saved.AuthorID != "7" {
		t.Errorf("author = %q, want 7", saved.AuthorID)
	}
	if saved.Category.Slug != "illegal-dumping" {
		t.Errorf("category = %q, want illegal-dumping", saved.Category.Slug)
	}
	if len(h.pub.published) != 1 || h.pub.published[0] != "42" {
		t.Errorf("published events = %v, want [42]", h.pub.published)
	}
}

func TestSubmit_ExifLocationFallback(t *testing.T) {
	h := newHarness(t)
	h.orch.extract = func(io.ReadSeeker) (*types.GeoCoordinate, types.ExifSnapshot, exif.Outcome) {
		return &types.GeoCoordinate{Latitude: 48.85661234999, Longitude: 2.3522},
			types.ExifSnapshot{"Make": "Canon"}, exif.OutcomeGPS
	}

	req := validRequest()
	req.Pin = nil

	res, err := h.orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Rejected {
		t.Fatalf("unexpected rejection: %+v", res)
	}

	saved := h.storage.saved[0]
	if saved.Latitude != 48.856612 {
		t.Errorf("latitude = %v, want 48.856612 (rounded to 6 places)", saved.Latitude)
	}
	if saved.Longitude != 2.3522 {
		t.Errorf("longitude = %v, want 2.3522", saved.Longitude)
	}
	if saved.ExifData["Make"] != "Canon" {
		t.Errorf("exif snapshot not persisted: %v", saved.ExifData)
	}
}

func TestSubmit_PinOverridesExif(t *testing.T) {
	h := newHarness(t)
	h.orch.extract = func(io.ReadSeeker) (*types.GeoCoordinate, types.ExifSnapshot, exif.Outcome) {
		return &types.GeoCoordinate{Latitude: 48.8566, Longitude: 2.3522}, nil, exif.OutcomeGPS
	}

	res, err := h.orch.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Rejected {
		t.Fatalf("unexpected rejection: %+v", res)
	}

	saved := h.storage.saved[0]
	if saved.Latitude != 40.7128 || saved.Longitude != -74.0060 {
		t.Errorf("location = (%v, %v), want the pin to win", saved.Latitude, saved.Longitude)
	}
}

func TestSubmit_NoLocationStagesPhoto(t *testing.T) {
	h := newHarness(t)

	req := validRequest()
	req.Pin = nil // extract stub reports no GPS either

	res, err := h.orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Rejected {
		t.Fatal("expected a rejection when no location source exists")
	}
	if !strings.Contains(res.FormError, "No location") {
		t.Errorf("form error = %q, want a no-location message", res.FormError)
	}
	if res.TempToken == "" {
		t.Fatal("expected the photo to be staged for retry")
	}

	staged, err := h.staging.Retrieve(res.TempToken)
	if err != nil {
		t.Fatalf("Retrieve staged: %v", err)
	}
	if staged == nil {
		t.Fatal("staged photo not retrievable")
	}

	// retry with the token and a pin succeeds and consumes the token
	retry := Request{
		AuthorID:  "7",
		TempToken: res.TempToken,
		Pin:       &types.GeoCoordinate{Latitude: 40.7128, Longitude: -74.0060},
		Category:  "illegal-dumping",
	}
	res2, err := h.orch.Submit(context.Background(), retry)
	if err != nil {
		t.Fatalf("retry Submit failed: %v", err)
	}
	if res2.Rejected {
		t.Fatalf("retry rejected: %+v", res2)
	}

	gone, err := h.staging.Retrieve(res.TempToken)
	if err != nil {
		t.Fatalf("Retrieve after success: %v", err)
	}
	if gone != nil {
		t.Error("token should be discarded after a successful submission")
	}
}

func TestSubmit_RepeatedFailureReusesToken(t *testing.T) {
	h := newHarness(t)

	req := validRequest()
	req.Pin = nil

	first, err := h.orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !first.Rejected || first.TempToken == "" {
		t.Fatalf("expected staged rejection, got %+v", first)
	}

	// retry with the token but still no location
	retry := req
	retry.Photo = nil
	retry.TempToken = first.TempToken

	second, err := h.orch.Submit(context.Background(), retry)
	if err != nil {
		t.Fatalf("retry Submit failed: %v", err)
	}
	if !second.Rejected {
		t.Fatal("expected the retry to be rejected again")
	}
	if second.TempToken != first.TempToken {
		t.Errorf("token changed across retries: %q then %q", first.TempToken, second.TempToken)
	}
}

func TestSubmit_ExpiredToken(t *testing.T) {
	h := newHarness(t)

	req := validRequest()
	req.Photo = nil
	req.TempToken = "long-gone.jpg"

	res, err := h.orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Rejected {
		t.Fatal("expected rejection on an expired token")
	}
	if msg := res.FieldErrors["photo"]; !strings.Contains(msg, "expired") {
		t.Errorf("photo error = %q, want an expiry message", msg)
	}
	if res.TempToken != "" {
		t.Errorf("dead token echoed back: %q", res.TempToken)
	}
}

func TestSubmit_NoPhotoNoToken(t *testing.T) {
	h := newHarness(t)

	req := validRequest()
	req.Photo = nil

	res, err := h.orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Rejected {
		t.Fatal("expected rejection without a photo")
	}
	if _, ok := res.FieldErrors["photo"]; !ok {
		t.Errorf("expected a photo field error, got %+v", res.FieldErrors)
	}
}

func TestSubmit_OversizedPhotoNotStaged(t *testing.T) {
	h := newHarness(t)

	req := validRequest()
	req.Photo.Size = 21 * 1024 * 1024

	res, err := h.orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Rejected {
		t.Fatal("expected rejection of an oversized photo")
	}
	if _, ok := res.FieldErrors["photo"]; !ok {
		t.Errorf("expected a photo field error, got %+v", res.FieldErrors)
	}
	if res.TempToken != "" {
		t.Error("an invalid photo must never be staged")
	}
}

func TestSubmit_DisallowedContentType(t *testing.T) {
	h := newHarness(t)

	req := validRequest()
	req.Photo.ContentType = "application/pdf"

	res, err := h.orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Rejected {
		t.Fatal("expected rejection of a non-image upload")
	}
	if res.TempToken != "" {
		t.Error("an invalid photo must never be staged")
	}
}

func TestSubmit_UnknownCategoryStagesPhoto(t *testing.T) {
	h := newHarness(t)

	req := validRequest()
	req.Category = "not-a-category"

	res, err := h.orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Rejected {
		t.Fatal("expected rejection on an unknown category")
	}
	if _, ok := res.FieldErrors["category"]; !ok {
		t.Errorf("expected a category field error, got %+v", res.FieldErrors)
	}
	if res.TempToken == "" {
		t.Error("a valid photo should be staged when other fields fail")
	}
}

func TestSubmit_InvalidSeverity(t *testing.T) {
	h := newHarness(t)

	req := validRequest()
	req.Severity = "catastrophic"

	res, err := h.orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Rejected {
		t.Fatal("expected rejection on an invalid severity")
	}
	if _, ok := res.FieldErrors["severity"]; !ok {
		t.Errorf("expected a severity field error, got %+v", res.FieldErrors)
	}
}

func TestSubmit_SeverityDefaultsToMedium(t *testing.T) {
	h := newHarness(t)

	req := validRequest()
	req.Severity = ""

	res, err := h.orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Rejected {
		t.Fatalf("unexpected rejection: %+v", res)
	}
	if got := h.storage.saved[0].Severity; got != types.SeverityMedium {
		t.Errorf("severity = %q, want medium default", got)
	}
}

func TestSubmit_UndecodableImage(t *testing.T) {
	h := newHarness(t)
	h.orch.normalize = func(io.ReadSeeker, int, int) (*types.NormalizedPhoto, error) {
		return nil, photo.ErrInvalidImage
	}

	res, err := h.orch.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Rejected {
		t.Fatal("expected rejection of an undecodable image")
	}
	if _, ok := res.FieldErrors["photo"]; !ok {
		t.Errorf("expected a photo field error, got %+v", res.FieldErrors)
	}
	if res.TempToken != "" {
		t.Error("an undecodable photo must never be staged")
	}
}

func TestSubmit_SaveFailureRemovesPhoto(t *testing.T) {
	h := newHarness(t)
	h.storage.saveErr = errors.New("connection reset")

	_, err := h.orch.Submit(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected Submit to surface the persistence failure")
	}
	if len(h.blobs.removed) != 1 {
		t.Fatalf("removed %d photos, want the orphaned object compensated", len(h.blobs.removed))
	}
	if h.blobs.removed[0] != "reports/7/photo.jpg" {
		t.Errorf("removed key = %q", h.blobs.removed[0])
	}
}

package reports

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cleanmap/reports-service/internal/http/middleware"
	"github.com/cleanmap/reports-service/internal/intake"
	"github.com/cleanmap/reports-service/internal/query"
	"github.com/cleanmap/reports-service/internal/storage"
	"github.com/cleanmap/reports-service/internal/types"
	"github.com/cleanmap/reports-service/internal/utils/response"
)

// multipart bodies are spooled to disk past this threshold
const multipartMemoryLimit = 32 << 20

// Submit handles a report submission
// @Summary Submit a new report
// @Description Submit a geolocated issue report with a photo. A rejected submission returns a temp_photo token that lets the retry skip re-uploading the photo.
// @Tags reports
// @Accept multipart/form-data
// @Produce json
// @Param photo formData file false "Photo (JPEG, PNG, or WebP)"
// @Param temp_photo formData string false "Staging token from a previous rejected attempt"
// @Param latitude formData number false "Manual pin latitude"
// @Param longitude formData number false "Manual pin longitude"
// @Param category formData string true "Category slug"
// @Param severity formData string false "Severity (low, medium, high)"
// @Param description formData string false "Description"
// @Success 201 {object} map[string]string "Report created"
// @Failure 400 {object} response.Response "Malformed request"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 422 {object} response.Response "Validation failed; data carries field errors and temp_photo"
// @Failure 500 {object} response.Response "Internal server error"
// @Security BearerAuth
// @Router /reports [post]
func Submit(orchestrator *intake.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("expected multipart form data")))
			return
		}

		req := intake.Request{
			AuthorID:    userID,
			TempToken:   r.FormValue("temp_photo"),
			Category:    r.FormValue("category"),
			Severity:    r.FormValue("severity"),
			Description: r.FormValue("description"),
			Pin:         parsePin(r.FormValue("latitude"), r.FormValue("longitude")),
		}

		upload, err := readPhotoField(r)
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("failed to read uploaded photo")))
			return
		}
		req.Photo = upload

		result, err := orchestrator.Submit(r.Context(), req)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to process submission")))
			return
		}

		if result.Rejected {
			response.WriteJSON(w, http.StatusUnprocessableEntity, response.SubmissionRejected(response.SubmissionErrors{
				FieldErrors: result.FieldErrors,
				FormError:   result.FormError,
				TempPhoto:   result.TempToken,
			}))
			return
		}

		response.WriteJSON(w, http.StatusCreated, map[string]string{"id": result.ReportID})
	}
}

// GeoJSON handles the public map listing
// @Summary List public reports as GeoJSON
// @Description Returns approved, in-progress, and cleaned reports as a GeoJSON FeatureCollection
// @Tags reports
// @Produce json
// @Param category query []string false "Category slugs (repeatable, match any)"
// @Param severity query string false "Severity filter"
// @Param status query string false "Status filter (approved, in_progress, cleaned)"
// @Param date_from query string false "Inclusive creation date lower bound (YYYY-MM-DD)"
// @Param date_to query string false "Inclusive creation date upper bound (YYYY-MM-DD)"
// @Success 200 {object} query.FeatureCollection "Feature collection"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /reports/geojson [get]
func GeoJSON(service *query.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()

		fc, err := service.ListPublic(r.Context(), query.Filters{
			Categories: params["category"],
			Severity:   params.Get("severity"),
			Status:     params.Get("status"),
			DateFrom:   params.Get("date_from"),
			DateTo:     params.Get("date_to"),
		})
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to list reports")))
			return
		}

		response.WriteJSON(w, http.StatusOK, fc)
	}
}

// Categories handles the category listing
// @Summary List report categories
// @Tags reports
// @Produce json
// @Success 200 {object} response.Response "Categories"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /categories [get]
func Categories(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := storage.ListCategories()
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to list categories")))
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Categories fetched successfully", categories))
	}
}

// parsePin builds a manual pin only when both coordinates are present
// and parse; a half-filled pin is treated as no pin.
func parsePin(latStr, lngStr string) *types.GeoCoordinate {
	if latStr == "" || lngStr == "" {
		return nil
	}
	lat, latErr := strconv.ParseFloat(latStr, 64)
	lng, lngErr := strconv.ParseFloat(lngStr, 64)
	if latErr != nil || lngErr != nil {
		return nil
	}
	return &types.GeoCoordinate{Latitude: lat, Longitude: lng}
}

func readPhotoField(r *http.Request) (*types.RawUpload, error) {
	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &types.RawUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

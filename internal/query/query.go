// Package query serves the public map listing: persisted reports
// filtered down to public statuses and projected into GeoJSON.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cleanmap/reports-service/internal/storage"
	"github.com/cleanmap/reports-service/internal/types"
)

// Filters are the raw, optional query parameters of a listing request.
// Unrecognized values (non-public status, unknown severity, unparsable
// dates) are ignored rather than rejected.
type Filters struct {
	Categories []string
	Severity   string
	Status     string
	DateFrom   string // YYYY-MM-DD, inclusive
	DateTo     string // YYYY-MM-DD, inclusive
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry is a GeoJSON point; coordinates are [longitude, latitude].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type Properties struct {
	ID            string         `json:"id"`
	CategoryName  string         `json:"category_name"`
	Color         string         `json:"color"`
	Severity      types.Severity `json:"severity"`
	Status        types.Status   `json:"status"`
	StatusDisplay string         `json:"status_display"`
	Description   string         `json:"description"`
	CreatedAt     string         `json:"created_at"`
}

const (
	maxDescriptionLen = 200
	createdAtFormat   = "Jan 02, 2006"

	cacheKeyPrefix = "geojson:"
	cacheTTL       = 45 * time.Second
)

// Service answers public listing queries, fronted by a short-TTL
// redis cache keyed on the filter tuple. A nil redis client disables
// caching.
type Service struct {
	storage storage.Storage
	redis   *redis.Client
}

func NewService(db storage.Storage, redisClient *redis.Client) *Service {
	return &Service{storage: db, redis: redisClient}
}

// ListPublic returns the FeatureCollection for reports with a public
// status, narrowed by the given filters.
func (s *Service) ListPublic(ctx context.Context, f Filters) (*FeatureCollection, error) {
	key := cacheKey(f)

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			var fc FeatureCollection
			if err := json.Unmarshal([]byte(cached), &fc); err == nil {
				return &fc, nil
			}
		}
	}

	reports, err := s.storage.QueryReports(buildFilters(f))
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}

	fc := &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(reports)),
	}
	for _, r := range reports {
		fc.Features = append(fc.Features, toFeature(r))
	}

	if s.redis != nil {
		if data, err := json.Marshal(fc); err == nil {
			s.redis.Set(ctx, key, data, cacheTTL)
		}
	}

	return fc, nil
}

// buildFilters maps the raw request filters onto storage filters,
// always clamping statuses to the public set.
func buildFilters(f Filters) types.ReportFilters {
	rf := types.ReportFilters{Statuses: types.PublicStatuses}

	// a requested status narrows the set only when itself public
	if types.IsPublicStatus(f.Status) {
		rf.Statuses = []types.Status{types.Status(f.Status)}
	}
	if len(f.Categories) > 0 {
		rf.CategorySlugs = f.Categories
	}
	if types.ValidSeverity(f.Severity) {
		rf.Severity = types.Severity(f.Severity)
	}
	if t, err := time.Parse("2006-01-02", f.DateFrom); err == nil {
		rf.CreatedFrom = &t
	}
	if t, err := time.Parse("2006-01-02", f.DateTo); err == nil {
		rf.CreatedTo = &t
	}

	return rf
}

func toFeature(r types.Report) Feature {
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: [2]float64{r.Longitude, r.Latitude},
		},
		Properties: Properties{
			ID:            r.ID,
			CategoryName:  r.Category.Name,
			Color:         r.Category.Color,
			Severity:      r.Severity,
			Status:        r.Status,
			StatusDisplay: r.Status.Label(),
			Description:   truncate(r.Description, maxDescriptionLen),
			CreatedAt:     r.CreatedAt.Format(createdAtFormat),
		},
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func cacheKey(f Filters) string {
	categories := append([]string(nil), f.Categories...)
	sort.Strings(categories)
	return cacheKeyPrefix + strings.Join([]string{
		strings.Join(categories, ","),
		f.Severity,
		f.Status,
		f.DateFrom,
		f.DateTo,
	}, "|")
}

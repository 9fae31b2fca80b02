package storage

import "github.com/cleanmap/reports-service/internal/types"

type Storage interface {
	// SaveReport persists a report and returns its assigned ID.
	SaveReport(report *types.Report) (string, error)
	// QueryReports returns reports matching the filters, newest first.
	QueryReports(filters types.ReportFilters) ([]types.Report, error)
	// GetCategoryBySlug returns (nil, nil) when the slug is unknown.
	GetCategoryBySlug(slug string) (*types.Category, error)
	ListCategories() ([]types.Category, error)
	CreateUser(email, password string) (string, error)
	GetUserByEmail(email string) (string, string, error)
}

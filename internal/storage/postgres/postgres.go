package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/cleanmap/reports-service/internal/config"
	"github.com/cleanmap/reports-service/internal/types"
)

type Postgres struct {
	Db *sql.DB
}

func NewPostgres(cfg *config.Config) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.PGSQL.Host, cfg.PGSQL.Port, cfg.PGSQL.User, cfg.PGSQL.Password, cfg.PGSQL.DBName, cfg.PGSQL.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		return nil, err
	}

	log.Println("Connected to Postgres database")

	pg := &Postgres{Db: db}
	err = pg.CreateTables()
	if err != nil {
		log.Fatal("Failed to create tables:", err)
	}

	return pg, nil
}

func (p *Postgres) CreateTables() error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS categories (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			slug VARCHAR(100) UNIQUE NOT NULL,
			icon VARCHAR(50) DEFAULT '',
			color VARCHAR(7) NOT NULL,
			description TEXT DEFAULT ''
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS reports (
			id SERIAL PRIMARY KEY,
			author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			photo_key VARCHAR(255) NOT NULL,
			latitude NUMERIC(9,6) NOT NULL,
			longitude NUMERIC(9,6) NOT NULL,
			category_id INTEGER NOT NULL REFERENCES categories(id),
			severity VARCHAR(10) NOT NULL CHECK (severity IN ('low', 'medium', 'high')),
			status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'in_progress', 'cleaned')),
			description TEXT DEFAULT '',
			exif_data JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			moderated_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
			moderated_at TIMESTAMP,
			cleaned_at TIMESTAMP
		);
		`,
		`CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);`,
	}

	for _, q := range queries {
		if _, err := p.Db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

func (p *Postgres) SaveReport(report *types.Report) (string, error) {
	var exifJSON interface{}
	if report.ExifData != nil {
		data, err := json.Marshal(report.ExifData)
		if err != nil {
			return "", fmt.Errorf("marshal exif data: %w", err)
		}
		exifJSON = data
	}

	var reportID int
	query := `
	INSERT INTO reports (author_id, photo_key, latitude, longitude, category_id, severity, status, description, exif_data, created_at)
	VALUES ($1, $2, $3, $4, (SELECT id FROM categories WHERE slug = $5), $6, $7, $8, $9, $10)
	RETURNING id
	`

	err := p.Db.QueryRow(query,
		report.AuthorID,
		report.PhotoKey,
		report.Latitude,
		report.Longitude,
		report.Category.Slug,
		report.Severity,
		report.Status,
		report.Description,
		exifJSON,
		report.CreatedAt,
	).Scan(&reportID)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d", reportID), nil
}

func (p *Postgres) QueryReports(filters types.ReportFilters) ([]types.Report, error) {
	var conditions []string
	var args []interface{}

	addArg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filters.Statuses) > 0 {
		statuses := make([]string, len(filters.Statuses))
		for i, s := range filters.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("r.status = ANY(%s)", addArg(pq.Array(statuses))))
	}
	if len(filters.CategorySlugs) > 0 {
		conditions = append(conditions, fmt.Sprintf("c.slug = ANY(%s)", addArg(pq.Array(filters.CategorySlugs))))
	}
	if filters.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("r.severity = %s", addArg(string(filters.Severity))))
	}
	if filters.CreatedFrom != nil {
		conditions = append(conditions, fmt.Sprintf("r.created_at::date >= %s", addArg(filters.CreatedFrom.Format("2006-01-02"))))
	}
	if filters.CreatedTo != nil {
		conditions = append(conditions, fmt.Sprintf("r.created_at::date <= %s", addArg(filters.CreatedTo.Format("2006-01-02"))))
	}

	query := `
	SELECT r.id, r.author_id, r.photo_key, r.latitude, r.longitude,
	       c.id, c.name, c.slug, c.icon, c.color,
	       r.severity, r.status, r.description, r.exif_data, r.created_at
	FROM reports r
	JOIN categories c ON c.id = r.category_id
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY r.created_at DESC"

	rows, err := p.Db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []types.Report
	for rows.Next() {
		var (
			r         types.Report
			exifRaw   []byte
			createdAt time.Time
		)
		err := rows.Scan(
			&r.ID, &r.AuthorID, &r.PhotoKey, &r.Latitude, &r.Longitude,
			&r.Category.ID, &r.Category.Name, &r.Category.Slug, &r.Category.Icon, &r.Category.Color,
			&r.Severity, &r.Status, &r.Description, &exifRaw, &createdAt,
		)
		if err != nil {
			return nil, err
		}
		if len(exifRaw) > 0 {
			if err := json.Unmarshal(exifRaw, &r.ExifData); err != nil {
				r.ExifData = nil
			}
		}
		r.CreatedAt = createdAt
		reports = append(reports, r)
	}

	return reports, rows.Err()
}

func (p *Postgres) GetCategoryBySlug(slug string) (*types.Category, error) {
	var c types.Category
	query := `SELECT id, name, slug, icon, color, description FROM categories WHERE slug = $1`

	err := p.Db.QueryRow(query, slug).Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.Color, &c.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (p *Postgres) ListCategories() ([]types.Category, error) {
	rows, err := p.Db.Query(`SELECT id, name, slug, icon, color, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []types.Category
	for rows.Next() {
		var c types.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.Color, &c.Description); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

func (p *Postgres) CreateUser(email, password string) (string, error) {
	var userID int
	query := `INSERT INTO users (email, password) VALUES ($1, $2) RETURNING id`

	err := p.Db.QueryRow(query, email, password).Scan(&userID)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d", userID), nil
}

func (p *Postgres) GetUserByEmail(email string) (string, string, error) {
	var (
		userID   int
		password string
	)
	query := `SELECT id, password FROM users WHERE email = $1`

	err := p.Db.QueryRow(query, email).Scan(&userID, &password)
	if err != nil {
		return "", "", err
	}

	return fmt.Sprintf("%d", userID), password, nil
}

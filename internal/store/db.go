package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/baxromumarov/job-extractor/internal/extractor"
)

//go:embed schema.sql
var embeddedSchema string

var ErrNotFound = errors.New("posting not found")

type Store struct {
	db *sql.DB
}

func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RunMigrations executes the schema at schemaPath, or the bundled schema
// when schemaPath is empty. The schema is idempotent.
func (s *Store) RunMigrations(schemaPath string) error {
	content := embeddedSchema
	if schemaPath != "" {
		raw, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("failed to read schema file: %w", err)
		}
		content = string(raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func clampLimit(limit int, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// SavedPosting is a posting the user chose to keep.
type SavedPosting struct {
	ID             int64     `json:"id"`
	URL            string    `json:"url"`
	Site           string    `json:"site"`
	JobTitle       string    `json:"jobTitle"`
	CompanyName    string    `json:"companyName"`
	JobDescription string    `json:"jobDescription"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (p SavedPosting) Posting() extractor.ParsedJobPosting {
	return extractor.ParsedJobPosting{
		JobTitle:       p.JobTitle,
		CompanyName:    p.CompanyName,
		JobDescription: p.JobDescription,
	}
}

const postingColumns = `id, url, site, job_title, company_name, job_description, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPosting(row scanner) (SavedPosting, error) {
	var p SavedPosting
	err := row.Scan(
		&p.ID,
		&p.URL,
		&p.Site,
		&p.JobTitle,
		&p.CompanyName,
		&p.JobDescription,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// SavePosting inserts a posting keyed by its normalized URL. Saving the same
// URL again replaces the stored fields.
func (s *Store) SavePosting(ctx context.Context, url, site string, posting extractor.ParsedJobPosting) (SavedPosting, error) {
	row := s.db.QueryRowContext(ctx, `
INSERT INTO postings (url, site, job_title, company_name, job_description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (url) DO UPDATE SET
    site = EXCLUDED.site,
    job_title = EXCLUDED.job_title,
    company_name = EXCLUDED.company_name,
    job_description = EXCLUDED.job_description,
    updated_at = NOW()
RETURNING `+postingColumns,
		url, site, posting.JobTitle, posting.CompanyName, posting.JobDescription)
	return scanPosting(row)
}

func (s *Store) GetPosting(ctx context.Context, id int64) (SavedPosting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = $1`, id)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedPosting{}, ErrNotFound
	}
	return p, err
}

func (s *Store) ListPostings(ctx context.Context, limit, offset int) ([]SavedPosting, error) {
	limit = clampLimit(limit, 20, 200)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+postingColumns+`
FROM postings
ORDER BY updated_at DESC, id DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	postings := []SavedPosting{}
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

func (s *Store) DeletePosting(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM postings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOldPostings removes postings not updated within olderThan.
func (s *Store) DeleteOldPostings(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `
DELETE FROM postings
WHERE updated_at < $1
`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"storytime/internal/domain"
	"storytime/internal/repository"
)

var createCatalogTables = []string{`
CREATE TABLE IF NOT EXISTS languages (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	code TEXT NOT NULL UNIQUE
);`,
	`
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);`,
}

var defaultLanguages = []domain.Language{
	{ID: 1, Name: "English", Code: "en"},
	{ID: 2, Name: "Hindi", Code: "hi"},
	{ID: 3, Name: "Telugu", Code: "te"},
	{ID: 4, Name: "Tamil", Code: "ta"},
	{ID: 5, Name: "Spanish", Code: "es"},
	{ID: 6, Name: "French", Code: "fr"},
}

var defaultCategories = []domain.Category{
	{ID: 1, Name: "Bedtime"},
	{ID: 2, Name: "Adventure"},
	{ID: 3, Name: "Fairy Tales"},
	{ID: 4, Name: "Mythology"},
	{ID: 5, Name: "Fables"},
}

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) repository.CatalogRepository {
	return &CatalogRepository{db: db}
}

// Init creates the catalog tables and seeds the default entries once.
func (r *CatalogRepository) Init(ctx context.Context) error {
	for _, stmt := range createCatalogTables {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create catalog tables: %w", err)
		}
	}
	for _, lang := range defaultLanguages {
		if _, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO languages (id, name, code) VALUES (?, ?, ?)`,
			lang.ID, lang.Name, lang.Code,
		); err != nil {
			return fmt.Errorf("seed language %s: %w", lang.Code, err)
		}
	}
	for _, cat := range defaultCategories {
		if _, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories (id, name) VALUES (?, ?)`,
			cat.ID, cat.Name,
		); err != nil {
			return fmt.Errorf("seed category %s: %w", cat.Name, err)
		}
	}
	return nil
}

func (r *CatalogRepository) ListLanguages(ctx context.Context) ([]domain.Language, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, code FROM languages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	defer rows.Close()

	var langs []domain.Language
	for rows.Next() {
		var lang domain.Language
		if err := rows.Scan(&lang.ID, &lang.Name, &lang.Code); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		langs = append(langs, lang)
	}
	return langs, rows.Err()
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []domain.Category
	for rows.Next() {
		var cat domain.Category
		if err := rows.Scan(&cat.ID, &cat.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

func (r *CatalogRepository) MissingLanguages(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM languages WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("lookup languages: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan language id: %w", err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate language ids: %w", err)
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

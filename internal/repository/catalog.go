package repository

import (
	"context"

	"storytime/internal/domain"
)

// CatalogRepository exposes the read-mostly language and category catalog.
type CatalogRepository interface {
	Init(ctx context.Context) error
	ListLanguages(ctx context.Context) ([]domain.Language, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	// MissingLanguages returns the ids from the input that have no catalog entry.
	MissingLanguages(ctx context.Context, ids []int64) ([]int64, error)
}

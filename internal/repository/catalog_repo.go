package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/liliang-cn/fixdoc/internal/domain"
)

// CatalogRepository handles device catalog persistence
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

var _ domain.CatalogStore = (*CatalogRepository)(nil)

// Create creates a new device category
func (r *CatalogRepository) Create(ctx context.Context, cat *domain.DeviceCategory) error {
	now := time.Now().UTC()
	cat.CreatedAt = now
	cat.UpdatedAt = now

	brandsJSON, modelsJSON, err := encodeCategory(cat)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO device_categories (name, brands, models, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, cat.Name, brandsJSON, modelsJSON, cat.CreatedAt, cat.UpdatedAt)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "insert device category: %w", err)
	}
	return nil
}

// Get retrieves a device category by name. A missing category yields nil, nil.
func (r *CatalogRepository) Get(ctx context.Context, name string) (*domain.DeviceCategory, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, brands, models, created_at, updated_at
		FROM device_categories WHERE name = ?
	`, name)

	cat, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "get device category: %w", err)
	}
	return cat, nil
}

// List retrieves all device categories by name
func (r *CatalogRepository) List(ctx context.Context) ([]*domain.DeviceCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, brands, models, created_at, updated_at
		FROM device_categories ORDER BY name ASC
	`)
	if err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "list device categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.DeviceCategory{}
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, domain.Errorf(domain.ErrStorage, "scan device category: %w", err)
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Errorf(domain.ErrStorage, "list device categories: %w", err)
	}
	return categories, nil
}

// Save updates the brands and models of a device category
func (r *CatalogRepository) Save(ctx context.Context, cat *domain.DeviceCategory) error {
	cat.UpdatedAt = time.Now().UTC()

	brandsJSON, modelsJSON, err := encodeCategory(cat)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE device_categories SET brands = ?, models = ?, updated_at = ? WHERE name = ?
	`, brandsJSON, modelsJSON, cat.UpdatedAt, cat.Name)
	if err != nil {
		return domain.Errorf(domain.ErrStorage, "update device category: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.Errorf(domain.ErrNotFound, "device category %s", cat.Name)
	}
	return nil
}

func encodeCategory(cat *domain.DeviceCategory) (string, string, error) {
	if cat.Brands == nil {
		cat.Brands = []string{}
	}
	if cat.Models == nil {
		cat.Models = map[string][]string{}
	}
	brandsJSON, err := json.Marshal(cat.Brands)
	if err != nil {
		return "", "", domain.Errorf(domain.ErrStorage, "encode brands: %w", err)
	}
	modelsJSON, err := json.Marshal(cat.Models)
	if err != nil {
		return "", "", domain.Errorf(domain.ErrStorage, "encode models: %w", err)
	}
	return string(brandsJSON), string(modelsJSON), nil
}

func scanCategory(row rowScanner) (*domain.DeviceCategory, error) {
	cat := &domain.DeviceCategory{}
	var brandsJSON, modelsJSON string

	if err := row.Scan(&cat.Name, &brandsJSON, &modelsJSON, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(brandsJSON), &cat.Brands); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(modelsJSON), &cat.Models); err != nil {
		return nil, err
	}
	return cat, nil
}

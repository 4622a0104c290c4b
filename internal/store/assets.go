package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/archvision/entgate/internal/domain"
)

func (s *PostgresStore) CreateAsset(ctx context.Context, asset *domain.Asset) (*domain.Asset, error) {
	if asset == nil {
		return nil, fmt.Errorf("asset is required")
	}
	if !asset.Type.IsValid() {
		return nil, fmt.Errorf("invalid asset type: %s", asset.Type)
	}
	id := strings.TrimSpace(asset.ID)
	if id == "" {
		return nil, fmt.Errorf("asset id is required")
	}
	if err := domain.ValidateTenantID(asset.OwnerTenantID); err != nil {
		return nil, err
	}

	metadata := asset.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO assets (asset_type, id, owner_tenant_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, asset.Type, id, asset.OwnerTenantID, metadata)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate key") {
			return nil, fmt.Errorf("asset already exists: %s/%s", asset.Type, id)
		}
		return nil, fmt.Errorf("create asset: %w", err)
	}
	return s.GetAsset(ctx, asset.Type, id)
}

func (s *PostgresStore) GetAsset(ctx context.Context, assetType domain.AssetType, assetID string) (*domain.Asset, error) {
	var a domain.Asset
	err := s.pool.QueryRow(ctx, `
		SELECT asset_type, id, owner_tenant_id, metadata, created_at
		FROM assets
		WHERE asset_type = $1 AND id = $2
	`, assetType, assetID).Scan(&a.Type, &a.ID, &a.OwnerTenantID, &a.Metadata, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("asset %s/%s: %w", assetType, assetID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context, tenantID string, assetType domain.AssetType) ([]*domain.Asset, error) {
	query := `
		SELECT asset_type, id, owner_tenant_id, metadata, created_at
		FROM assets
		WHERE owner_tenant_id = $1
	`
	args := []any{tenantID}
	if assetType != "" {
		query += ` AND asset_type = $2`
		args = append(args, assetType)
	}
	query += ` ORDER BY asset_type, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := make([]*domain.Asset, 0)
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.Type, &a.ID, &a.OwnerTenantID, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) DeleteAsset(ctx context.Context, assetType domain.AssetType, assetID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM assets WHERE asset_type = $1 AND id = $2
	`, assetType, assetID)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s/%s: %w", assetType, assetID, ErrNotFound)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/archvision/entgate/internal/domain"
)

func (s *PostgresStore) GetQuota(ctx context.Context, tenantID, productCode, quotaCode string) (*domain.QuotaState, error) {
	var q domain.QuotaState
	err := s.pool.QueryRow(ctx, `
		SELECT limit_value, used
		FROM tenant_quotas
		WHERE tenant_id = $1 AND product_code = $2 AND quota_code = $3
	`, tenantID, productCode, quotaCode).Scan(&q.Limit, &q.Used)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("quota %s/%s/%s: %w", tenantID, productCode, quotaCode, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get quota: %w", err)
	}
	return &q, nil
}

func (s *PostgresStore) listQuotas(ctx context.Context, tenantID, productCode string) (map[string]domain.QuotaState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT quota_code, limit_value, used
		FROM tenant_quotas
		WHERE tenant_id = $1 AND product_code = $2
	`, tenantID, productCode)
	if err != nil {
		return nil, fmt.Errorf("list quotas: %w", err)
	}
	defer rows.Close()

	quotas := make(map[string]domain.QuotaState)
	for rows.Next() {
		var code string
		var q domain.QuotaState
		if err := rows.Scan(&code, &q.Limit, &q.Used); err != nil {
			return nil, fmt.Errorf("scan quota: %w", err)
		}
		quotas[code] = q
	}
	return quotas, rows.Err()
}

// SetQuotaLimit creates or updates the limit for a quota, keeping the
// current usage counter. The limit must be non-negative or the
// unlimited sentinel.
func (s *PostgresStore) SetQuotaLimit(ctx context.Context, tenantID, productCode, quotaCode string, limit int64) error {
	code := strings.TrimSpace(quotaCode)
	if code == "" {
		return fmt.Errorf("quota code is required")
	}
	if limit < 0 && limit != domain.UnlimitedQuota {
		return fmt.Errorf("quota limit must be >= 0 or %d (unlimited)", domain.UnlimitedQuota)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_quotas (tenant_id, product_code, quota_code, limit_value, used, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW())
		ON CONFLICT (tenant_id, product_code, quota_code)
		DO UPDATE SET limit_value = EXCLUDED.limit_value, updated_at = NOW()
	`, tenantID, productCode, code, limit)
	if err != nil {
		return fmt.Errorf("set quota limit: %w", err)
	}
	return nil
}

// ConsumeQuota atomically checks sufficiency and increments usage in a
// single statement; concurrent consumers never over-commit. The
// returned status reflects the post-consume counters on success and
// the unchanged counters on refusal.
func (s *PostgresStore) ConsumeQuota(ctx context.Context, tenantID, productCode, quotaCode string, amount int64) (*domain.QuotaStatus, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("consume amount must be positive")
	}

	var used, limit int64
	err := s.pool.QueryRow(ctx, `
		UPDATE tenant_quotas
		SET used = used + $4, updated_at = NOW()
		WHERE tenant_id = $1 AND product_code = $2 AND quota_code = $3
			AND (limit_value = -1 OR limit_value - used >= $4)
		RETURNING used, limit_value
	`, tenantID, productCode, quotaCode, amount).Scan(&used, &limit)
	if err == nil {
		return &domain.QuotaStatus{
			Sufficient: true,
			Used:       used,
			Limit:      limit,
			Remaining:  remaining(limit, used),
		}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("consume quota: %w", err)
	}

	// No row updated: either the quota does not exist or it is
	// insufficient. Read it back to tell the two apart.
	q, err := s.GetQuota(ctx, tenantID, productCode, quotaCode)
	if err != nil {
		return nil, err
	}
	return &domain.QuotaStatus{
		Sufficient: false,
		Used:       q.Used,
		Limit:      q.Limit,
		Remaining:  remaining(q.Limit, q.Used),
	}, nil
}

func remaining(limit, used int64) int64 {
	if limit == domain.UnlimitedQuota {
		return domain.UnlimitedQuota
	}
	r := limit - used
	if r < 0 {
		return 0
	}
	return r
}

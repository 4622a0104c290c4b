package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/archvision/entgate/internal/domain"
	"github.com/archvision/entgate/internal/metrics"
	"github.com/archvision/entgate/internal/observability"
	"github.com/archvision/entgate/internal/store"
)

// CheckQuota reports whether the tenant's quota can absorb amount more
// units. A limit of domain.UnlimitedQuota is always sufficient. A quota
// that was never granted is insufficient, not an error; only an
// inability to read the ledger returns one, and callers must deny on
// it.
//
// CheckQuota is read-only and deliberately decoupled from
// CheckPermission: callers are expected to evaluate permission first,
// then check (and later consume) quota. The engine does not enforce
// that ordering.
func (e *Engine) CheckQuota(ctx context.Context, tenantID, productCode, quotaCode string, amount int64) (*domain.QuotaStatus, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("quota amount must be positive, got %d", amount)
	}

	ctx, span := observability.StartSpan(ctx, "engine.CheckQuota",
		observability.AttrTenantID.String(tenantID),
		observability.AttrProduct.String(productCode),
	)
	defer span.End()

	ctx, cancel := e.boundCtx(ctx)
	defer cancel()

	q, err := e.ledger.GetQuota(ctx, tenantID, productCode, quotaCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// No grant: zero capacity.
			st := &domain.QuotaStatus{Sufficient: false, Used: 0, Limit: 0, Remaining: 0}
			metrics.RecordQuotaCheck(productCode, false)
			observability.SetSpanOK(span)
			return st, nil
		}
		observability.SetSpanError(span, err)
		return nil, fmt.Errorf("read quota %s/%s/%s: %w", tenantID, productCode, quotaCode, err)
	}

	st := quotaStatus(q, amount)
	metrics.RecordQuotaCheck(productCode, st.Sufficient)
	observability.SetSpanOK(span)
	return st, nil
}

func quotaStatus(q *domain.QuotaState, amount int64) *domain.QuotaStatus {
	if q.Limit == domain.UnlimitedQuota {
		return &domain.QuotaStatus{
			Sufficient: true,
			Used:       q.Used,
			Limit:      domain.UnlimitedQuota,
			Remaining:  domain.UnlimitedQuota,
		}
	}
	remaining := q.Limit - q.Used
	if remaining < 0 {
		remaining = 0
	}
	return &domain.QuotaStatus{
		Sufficient: remaining >= amount,
		Used:       q.Used,
		Limit:      q.Limit,
		Remaining:  remaining,
	}
}

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/archvision/entgate/internal/domain"
)

func TestCheckQuota(t *testing.T) {
	tests := []struct {
		name           string
		state          *domain.QuotaState
		amount         int64
		wantSufficient bool
		wantRemaining  int64
	}{
		{
			name:           "plenty remaining",
			state:          &domain.QuotaState{Limit: 100, Used: 10},
			amount:         5,
			wantSufficient: true,
			wantRemaining:  90,
		},
		{
			name:           "exactly enough",
			state:          &domain.QuotaState{Limit: 100, Used: 95},
			amount:         5,
			wantSufficient: true,
			wantRemaining:  5,
		},
		{
			name:           "one short",
			state:          &domain.QuotaState{Limit: 100, Used: 96},
			amount:         5,
			wantSufficient: false,
			wantRemaining:  4,
		},
		{
			name:           "exhausted",
			state:          &domain.QuotaState{Limit: 100, Used: 100},
			amount:         1,
			wantSufficient: false,
			wantRemaining:  0,
		},
		{
			name:           "zero limit never suffices",
			state:          &domain.QuotaState{Limit: 0, Used: 0},
			amount:         1,
			wantSufficient: false,
			wantRemaining:  0,
		},
		{
			name:           "unlimited is always sufficient",
			state:          &domain.QuotaState{Limit: domain.UnlimitedQuota, Used: 1 << 40},
			amount:         1 << 20,
			wantSufficient: true,
			wantRemaining:  domain.UnlimitedQuota,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newRecordingStore()
			s.quotas["mall-1/domestic_3d/render_2k_monthly"] = tt.state
			e := newTestEngine(s)

			st, err := e.CheckQuota(context.Background(), "mall-1", "domestic_3d", "render_2k_monthly", tt.amount)
			if err != nil {
				t.Fatalf("CheckQuota: %v", err)
			}
			if st.Sufficient != tt.wantSufficient {
				t.Errorf("sufficient = %v, want %v", st.Sufficient, tt.wantSufficient)
			}
			if st.Remaining != tt.wantRemaining {
				t.Errorf("remaining = %d, want %d", st.Remaining, tt.wantRemaining)
			}
			if st.Used != tt.state.Used || st.Limit != tt.state.Limit {
				t.Errorf("used/limit = %d/%d, want %d/%d", st.Used, st.Limit, tt.state.Used, tt.state.Limit)
			}
		})
	}
}

func TestCheckQuotaUngranted(t *testing.T) {
	s := newRecordingStore()
	e := newTestEngine(s)

	st, err := e.CheckQuota(context.Background(), "mall-1", "domestic_3d", "render_2k_monthly", 1)
	if err != nil {
		t.Fatalf("CheckQuota: %v", err)
	}
	if st.Sufficient {
		t.Error("ungranted quota must be insufficient")
	}
	if st.Limit != 0 || st.Used != 0 || st.Remaining != 0 {
		t.Errorf("expected zero state, got %+v", st)
	}
}

func TestCheckQuotaLedgerError(t *testing.T) {
	s := newRecordingStore()
	s.failQuota = errors.New("connection refused")
	e := newTestEngine(s)

	if _, err := e.CheckQuota(context.Background(), "mall-1", "domestic_3d", "render_2k_monthly", 1); err == nil {
		t.Fatal("expected error when the ledger is unreachable")
	}
}

func TestCheckQuotaRejectsNonPositiveAmount(t *testing.T) {
	s := newRecordingStore()
	e := newTestEngine(s)

	for _, amount := range []int64{0, -1, -100} {
		if _, err := e.CheckQuota(context.Background(), "mall-1", "domestic_3d", "render_2k_monthly", amount); err == nil {
			t.Errorf("amount %d: expected error", amount)
		}
	}
	if got := s.callLog(); len(got) != 0 {
		t.Errorf("store calls = %v, want none", got)
	}
}

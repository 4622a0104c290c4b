package cache

import (
	"context"
	"testing"
	"time"
)

func TestTieredCache_L2Fallthrough(t *testing.T) {
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()
	tc := NewTieredCache(l1, l2, time.Minute)
	defer tc.Close()

	ctx := context.Background()

	// Seed only L2, as if written by another instance.
	if err := l2.Set(ctx, "role:T1/U1", []byte(`["render:create"]`), time.Minute); err != nil {
		t.Fatalf("seed L2: %v", err)
	}

	val, err := tc.Get(ctx, "role:T1/U1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != `["render:create"]` {
		t.Fatalf("unexpected value: %s", val)
	}

	// The hit must have populated L1.
	if _, err := l1.Get(ctx, "role:T1/U1"); err != nil {
		t.Fatalf("L1 not populated after L2 hit: %v", err)
	}
}

func TestTieredCache_SetWritesBothLayers(t *testing.T) {
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()
	tc := NewTieredCache(l1, l2, time.Minute)
	defer tc.Close()

	ctx := context.Background()

	if err := tc.Set(ctx, "key", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := l1.Get(ctx, "key"); err != nil {
		t.Fatalf("L1 miss after Set: %v", err)
	}
	if _, err := l2.Get(ctx, "key"); err != nil {
		t.Fatalf("L2 miss after Set: %v", err)
	}
}

func TestTieredCache_DeleteRemovesBothLayers(t *testing.T) {
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()
	tc := NewTieredCache(l1, l2, time.Minute)
	defer tc.Close()

	ctx := context.Background()

	if err := tc.Set(ctx, "key", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := tc.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := tc.Get(ctx, "key"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got: %v", err)
	}
}

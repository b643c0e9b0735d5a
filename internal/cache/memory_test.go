package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemoryQueryCache_TTL(t *testing.T) {
	c := NewMemoryQueryCache(10*time.Millisecond, 0)
	defer c.Close()

	ctx := context.Background()
	key := "chat:s1:abc"
	val := []byte("hello")

	if err := c.Set(ctx, key, val, 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit immediately after Set")
	}
	if string(got) != "hello" {
		t.Fatalf("expected 'hello', got %q", got)
	}

	// Wait for TTL to expire
	time.Sleep(30 * time.Millisecond)

	_, hit, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if hit {
		t.Fatalf("expected miss after TTL expiry")
	}
}

func TestMemoryQueryCache_Conflict(t *testing.T) {
	c := NewMemoryQueryCache(time.Minute, 0)
	defer c.Close()

	ctx := context.Background()
	key := "chat:s1:abc"

	if err := c.Set(ctx, key, []byte("first"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Same value again is an idempotent no-op.
	if err := c.Set(ctx, key, []byte("first"), time.Minute); err != nil {
		t.Fatalf("idempotent Set failed: %v", err)
	}

	// Different value is a conflict and must not overwrite.
	err := c.Set(ctx, key, []byte("second"), time.Minute)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, hit, err := c.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("Get after conflict: hit=%v err=%v", hit, err)
	}
	if string(got) != "first" {
		t.Fatalf("conflict overwrote value: got %q", got)
	}
}

func TestMemoryQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryQueryCache(time.Minute, 3)
	defer c.Close()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("chat:s1:k%d", i)
		if err := c.Set(ctx, key, []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set %s failed: %v", key, err)
		}
		// keep lastAccess strictly ordered
		time.Sleep(2 * time.Millisecond)
	}

	// Touch k0 so k1 becomes the oldest.
	if _, hit, _ := c.Get(ctx, "chat:s1:k0"); !hit {
		t.Fatalf("expected hit for k0")
	}
	time.Sleep(2 * time.Millisecond)

	if err := c.Set(ctx, "chat:s1:k3", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set k3 failed: %v", err)
	}

	if c.Len() != 3 {
		t.Fatalf("expected 3 entries after eviction, got %d", c.Len())
	}
	if _, hit, _ := c.Get(ctx, "chat:s1:k1"); hit {
		t.Fatalf("expected k1 to be evicted")
	}
	if _, hit, _ := c.Get(ctx, "chat:s1:k0"); !hit {
		t.Fatalf("expected recently used k0 to survive")
	}
}

func TestMemoryQueryCache_KeyString(t *testing.T) {
	k := Key{SessionID: "s1", Hash: "deadbeef"}
	if k.String() != "chat:s1:deadbeef" {
		t.Fatalf("unexpected key string: %s", k.String())
	}
}

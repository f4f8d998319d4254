package nlm

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		k1 := CacheKey("summary", "https://youtu.be/x")
		k2 := CacheKey("summary", "https://youtu.be/x")
		if k1 != k2 {
			t.Errorf("CacheKey not deterministic: %q != %q", k1, k2)
		}
	})

	t.Run("different inputs differ", func(t *testing.T) {
		k1 := CacheKey("summary", "https://youtu.be/x")
		k2 := CacheKey("ask", "https://youtu.be/x")
		if k1 == k2 {
			t.Errorf("different inputs produced same key: %q", k1)
		}
	})

	t.Run("has prefix", func(t *testing.T) {
		if k := CacheKey("test"); !strings.HasPrefix(k, "nlm:") {
			t.Errorf("expected nlm: prefix, got %q", k)
		}
	})
}

func TestCacheRoundTrip(t *testing.T) {
	// No Redis: L1 only.
	InitCache("", time.Minute, 100, 5*time.Minute)

	ctx := context.Background()
	key := CacheKey("test", "round-trip")

	if _, ok := CacheGet(ctx, key); ok {
		t.Error("expected miss on empty cache")
	}

	type answer struct {
		Text string `json:"text"`
	}
	CacheStoreJSON(ctx, key, answer{Text: "hello"})

	got, ok := CacheLoadJSON[answer](ctx, key)
	if !ok {
		t.Fatal("expected hit after store")
	}
	if got.Text != "hello" {
		t.Errorf("got %q, want hello", got.Text)
	}
}

func TestCacheExpiration(t *testing.T) {
	InitCache("", time.Millisecond, 100, 5*time.Minute)

	ctx := context.Background()
	key := CacheKey("test", "expiry")

	CacheSet(ctx, key, []byte("temp"))
	time.Sleep(5 * time.Millisecond)

	if _, ok := CacheGet(ctx, key); ok {
		t.Error("expected miss after TTL expiry")
	}
}

func TestCacheEviction(t *testing.T) {
	InitCache("", time.Minute, 3, 5*time.Minute)

	ctx := context.Background()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		CacheSet(ctx, CacheKey("evict", k), []byte(k))
	}

	count := 0
	answerCache.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count > 3 {
		t.Errorf("L1 holds %d entries, want <= 3", count)
	}
}

func TestCacheUninitialized(t *testing.T) {
	old := answerCache
	answerCache = nil
	defer func() { answerCache = old }()

	ctx := context.Background()
	CacheSet(ctx, "k", []byte("v"))
	if _, ok := CacheGet(ctx, "k"); ok {
		t.Error("nil cache must never hit")
	}
}

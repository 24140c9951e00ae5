package cache

import (
	"context"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(maxSize int, ttl time.Duration) (*LRUCache[int], *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](maxSize, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Fatalf("overwrite not visible, got %d", v)
	}
	if c.Size() != 1 {
		t.Fatalf("expected size 1, got %d", c.Size())
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("deleted key still present")
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if !c.Contains(k) {
			t.Fatalf("%s should still be cached", k)
		}
	}
}

func TestLRUCache_ContainsDoesNotTouchRecency(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Contains("a")
	c.Set("c", 3)
	if c.Contains("a") {
		t.Fatal("a should have been evicted")
	}
}

func TestLRUCache_Unbounded(t *testing.T) {
	c, _ := newTestCache(0, time.Minute)
	for i := 0; i < 100; i++ {
		c.Set(string(rune('A'+i)), i)
	}
	if c.Size() != 100 {
		t.Fatalf("expected 100 entries, got %d", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("old", 1)
	clk.t = clk.t.Add(45 * time.Second)
	c.Set("new", 2)
	clk.t = clk.t.Add(30 * time.Second)

	if c.Contains("old") {
		t.Fatal("old should have expired")
	}
	if !c.Contains("new") {
		t.Fatal("new should still be live")
	}

	c.Set("stale", 3)
	clk.t = clk.t.Add(2 * time.Minute)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("expected 2 expired entries, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
}

func TestManager_Sweep(t *testing.T) {
	a, clkA := newTestCache(10, time.Second)
	b, clkB := newTestCache(10, time.Hour)
	a.Set("x", 1)
	b.Set("y", 2)
	clkA.t = clkA.t.Add(time.Minute)
	clkB.t = clkB.t.Add(time.Minute)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 removed entry, got %d", n)
	}
	if b.Size() != 1 {
		t.Fatal("live entry removed")
	}
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Millisecond) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

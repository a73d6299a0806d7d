package cache

import (
	"testing"
	"time"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := c.GetBytes("k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("get: %v %v %q", err, ok, b)
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	if err := c.SetBytes("k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := c.GetBytes("k"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache()
	_ = c.SetBytes("k", []byte("v"), 0)
	if err := c.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.GetBytes("k"); ok {
		t.Fatalf("expected entry gone after delete")
	}
}

func TestForecastKeyStable(t *testing.T) {
	type req struct {
		Period     string
		Candidates []string
	}
	a := ForecastKey(req{Period: "us-2024", Candidates: []string{"A", "B"}})
	b := ForecastKey(req{Period: "us-2024", Candidates: []string{"A", "B"}})
	if a != b {
		t.Fatalf("same params must key identically")
	}
	c := ForecastKey(req{Period: "us-2024", Candidates: []string{"A", "C"}})
	if a == c {
		t.Fatalf("different params must key differently")
	}
}

package features

import (
	"math"
	"testing"
)

func TestTimeWeightAtZeroDays(t *testing.T) {
	if got := TimeWeight(0, DefaultDecayRate); got != 1.0 {
		t.Fatalf("expected 1.0 at day zero, got %v", got)
	}
}

func TestTimeWeightStrictlyDecreasing(t *testing.T) {
	prev := math.Inf(1)
	for days := 0.0; days <= 120; days += 7 {
		w := TimeWeight(days, DefaultDecayRate)
		if w >= prev {
			t.Fatalf("weight not strictly decreasing at days=%v: %v >= %v", days, w, prev)
		}
		if w <= 0 || w > 1 {
			t.Fatalf("weight out of (0,1] at days=%v: %v", days, w)
		}
		prev = w
	}
}

func TestTimeWeightThirtyDays(t *testing.T) {
	got := TimeWeight(30, 0.05)
	want := math.Exp(-0.05)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNormalizeRange(t *testing.T) {
	if got := Normalize(5, 0, 10); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := Normalize(0, 0, 10); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := Normalize(10, 0, 10); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}

func TestNormalizeDegenerateWindow(t *testing.T) {
	if got := Normalize(7, 7, 7); got != 0.5 {
		t.Fatalf("expected 0.5 for degenerate window, got %v", got)
	}
}

func TestNormalizeClamps(t *testing.T) {
	if got := Normalize(-1, 0, 10); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
	if got := Normalize(11, 0, 10); got != 1 {
		t.Fatalf("expected clamp to 1, got %v", got)
	}
}

package util

import (
	"testing"
	"time"
)

func TestParseDateISO(t *testing.T) {
	got, ok := ParseDate("2016-11-08")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Year() != 2016 || got.Month() != time.November || got.Day() != 8 {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseDate(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	got := ParseDateDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestDaysBetween(t *testing.T) {
	from := time.Date(2016, 9, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2016, 11, 8, 0, 0, 0, 0, time.UTC)
	if d := DaysBetween(from, to); d != 60 {
		t.Fatalf("expected 60 days, got %d", d)
	}
	if d := DaysBetween(to, to); d != 0 {
		t.Fatalf("expected 0 days, got %d", d)
	}
}

package daily

import (
	"errors"
	"testing"
	"time"

	"github.com/robalobadob/tradle/internal/countries"
	"github.com/robalobadob/tradle/internal/geo"
)

func TestDayKey(t *testing.T) {
	now := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("x", -5*3600)) // 2024-03-10 UTC

	cases := []struct {
		name     string
		override string
		want     string
		wantErr  bool
	}{
		{"no override uses utc date", "", "2024-03-10", false},
		{"plain date", "2023-12-25", "2023-12-25", false},
		{"basic format", "20230704", "2023-07-04", false},
		{"date time", "2023-01-02T10:11", "2023-01-02", false},
		{"rfc3339 keeps written date", "2023-01-02T23:59:00-08:00", "2023-01-02", false},
		{"garbage falls back", "yesterday", "2024-03-10", true},
		{"impossible date falls back", "2023-02-30", "2024-03-10", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DayKey(now, tc.override)
			if got != tc.want {
				t.Fatalf("DayKey(%q) = %q, want %q", tc.override, got, tc.want)
			}
			if tc.wantErr != errors.Is(err, ErrInvalidOverrideDate) {
				t.Fatalf("DayKey(%q) err = %v, wantErr %v", tc.override, err, tc.wantErr)
			}
		})
	}
}

func TestSpecialAndHistorical(t *testing.T) {
	if !IsSpecialDay("2025-04-01") || IsSpecialDay("2025-04-02") || IsSpecialDay("2025-01-04") {
		t.Fatalf("IsSpecialDay misclassified")
	}
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	if IsHistorical("2025-05-01", now) {
		t.Fatalf("today is not historical")
	}
	if !IsHistorical("2025-04-30", now) {
		t.Fatalf("yesterday is historical")
	}
}

func testPool() *countries.Pool {
	return countries.NewPool([]countries.Country{
		{Code: "AA", Name: "Alpha", Point: geo.Point{Lat: 1, Lng: 1}},
		{Code: "BB", Name: "Beta", Point: geo.Point{Lat: 2, Lng: 2}},
		{Code: "CC", Name: "Gamma", Point: geo.Point{Lat: 3, Lng: 3}},
		{Code: "DD", Name: "Delta", Point: geo.Point{Lat: 4, Lng: 4}},
	})
}

func TestTargetIsStablePerDay(t *testing.T) {
	a := NewSelector(testPool(), "salt")
	b := NewSelector(testPool(), "salt")

	seen := map[string]bool{}
	for d := 0; d < 60; d++ {
		key := DateKey(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d))
		ta, ok := a.Target(key)
		if !ok {
			t.Fatalf("no target for %s", key)
		}
		tb, _ := b.Target(key)
		if ta.Code != tb.Code {
			t.Fatalf("target for %s differs between selectors: %s vs %s", key, ta.Code, tb.Code)
		}
		again, _ := a.Target(key)
		if again.Code != ta.Code {
			t.Fatalf("target for %s not stable", key)
		}
		seen[ta.Code] = true
	}
	if len(seen) < 2 {
		t.Fatalf("selection never varies across days: %v", seen)
	}
}

func TestTargetSpecialDay(t *testing.T) {
	s := NewSelector(testPool(), "salt")
	got, ok := s.Target("2024-04-01")
	if !ok || got.Code != SpecialTarget.Code {
		t.Fatalf("special day target = %+v, want %s", got, SpecialTarget.Code)
	}

	empty := NewSelector(countries.NewPool(nil), "salt")
	if _, ok := empty.Target("2024-05-05"); ok {
		t.Fatalf("empty pool must not yield a target")
	}
}

func TestIndexBounds(t *testing.T) {
	if Index("2024-01-01", "s", 0) != 0 {
		t.Fatalf("zero-size pool must map to 0")
	}
	for _, n := range []int{1, 7, 200} {
		if i := Index("2024-01-01", "s", n); i < 0 || i >= n {
			t.Fatalf("Index out of range for n=%d: %d", n, i)
		}
	}
}

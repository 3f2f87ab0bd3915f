package calendar

import (
	"testing"
	"time"
)

func TestFixed_Today(t *testing.T) {
	c := Fixed(time.Date(2025, 4, 22, 23, 30, 0, 0, time.UTC))
	if got := c.Today(); got != "2025-04-22" {
		t.Errorf("Today() = %q, want 2025-04-22", got)
	}
}

func TestNew_ZoneShiftsDate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	c := New(ist)
	c.now = func() time.Time { return time.Date(2025, 4, 22, 20, 0, 0, 0, time.UTC) }
	if got := c.Today(); got != "2025-04-23" {
		t.Errorf("Today() = %q, want 2025-04-23", got)
	}
}

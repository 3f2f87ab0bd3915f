// Package calendar renders ISO calendar dates in a fixed zone so that
// "submitted today" checks agree across the process.
package calendar

import "time"

// DateLayout is the YYYY-MM-DD layout stored on requests and orders.
const DateLayout = "2006-01-02"

type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Calendar in loc. A nil loc means UTC.
func New(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc, now: time.Now}
}

// Fixed returns a Calendar whose clock always reads t.
func Fixed(t time.Time) *Calendar {
	return &Calendar{loc: t.Location(), now: func() time.Time { return t }}
}

func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current date as YYYY-MM-DD.
func (c *Calendar) Today() string {
	return c.Now().Format(DateLayout)
}

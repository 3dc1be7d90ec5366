// Package dates handles the YYYYMMDD calendar-date ranges that scope a run.
package dates

import (
	"fmt"
	"time"
)

// Layout is the wire format used by every source and by the graph's Date nodes.
const Layout = "20060102"

// Range is an inclusive calendar-date range.
type Range struct {
	Start time.Time
	End   time.Time
}

// ParseRange parses and validates a YYYYMMDD start/end pair. Start must not
// be after end.
func ParseRange(start, end string) (Range, error) {
	st, err := time.Parse(Layout, start)
	if err != nil {
		return Range{}, fmt.Errorf("parse start date %q: %w", start, err)
	}
	fn, err := time.Parse(Layout, end)
	if err != nil {
		return Range{}, fmt.Errorf("parse end date %q: %w", end, err)
	}
	if st.After(fn) {
		return Range{}, fmt.Errorf("start date %s is after end date %s", start, end)
	}
	return Range{Start: st, End: fn}, nil
}

// Days expands the range to its ordered list of YYYYMMDD days, inclusive on
// both ends.
func (r Range) Days() []string {
	var days []string
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(Layout))
	}
	return days
}

func (r Range) String() string {
	return r.Start.Format(Layout) + "~" + r.End.Format(Layout)
}

// Package daterange turns the loosely typed date filters of dashboard
// requests into concrete time windows and SQL predicates over "createdAt".
package daterange

import (
	"strconv"
	"strings"
	"time"

	"github.com/apiwatch/dashboard/internal/store"
)

const (
	// DefaultDays is the relative window used when no usable filter is given.
	DefaultDays = 7
	// MaxDays caps relative windows.
	MaxDays = 365

	dateLayout = "2006-01-02"
)

// Range is the raw filter accepted by every aggregation.
// Absolute dates win over Days when both dates are valid calendar dates.
type Range struct {
	Days      int
	StartDate string
	EndDate   string
}

// Days returns a relative range of n days.
func Days(n int) Range { return Range{Days: n} }

// Between returns an absolute range covering both calendar dates.
func Between(startDate, endDate string) Range {
	return Range{StartDate: startDate, EndDate: endDate}
}

// ParseRange builds a Range from query string values. A non-numeric days
// value is treated as absent.
func ParseRange(days, startDate, endDate string) Range {
	n, err := strconv.Atoi(strings.TrimSpace(days))
	if err != nil {
		n = 0
	}
	return Range{
		Days:      n,
		StartDate: strings.TrimSpace(startDate),
		EndDate:   strings.TrimSpace(endDate),
	}
}

// Window is a normalized half-open interval [Start, End). When Bounded is
// false the window is open-ended and End is unused.
type Window struct {
	Start   time.Time
	End     time.Time
	Bounded bool
	// Days is the relative length, zero for absolute windows.
	Days int
}

// Normalizer resolves ranges against a clock and a calendar location.
type Normalizer struct {
	Now      func() time.Time
	Location *time.Location
	MaxDays  int
}

// NewNormalizer returns a Normalizer using the wall clock. A nil location
// means UTC.
func NewNormalizer(loc *time.Location) Normalizer {
	return Normalizer{Now: time.Now, Location: loc, MaxDays: MaxDays}
}

func (n Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

func (n Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.UTC
	}
	return n.Location
}

func (n Normalizer) maxDays() int {
	if n.MaxDays <= 0 {
		return MaxDays
	}
	return n.MaxDays
}

// Normalize resolves r into a Window. It never fails: unusable input falls
// back to the default relative window.
func (n Normalizer) Normalize(r Range) Window {
	if r.StartDate != "" && r.EndDate != "" {
		loc := n.location()
		start, errStart := time.ParseInLocation(dateLayout, r.StartDate, loc)
		end, errEnd := time.ParseInLocation(dateLayout, r.EndDate, loc)
		if errStart == nil && errEnd == nil {
			return Window{
				Start:   start,
				End:     end.AddDate(0, 0, 1),
				Bounded: true,
			}
		}
	}

	days := r.Days
	if days < 1 {
		days = DefaultDays
	}
	if limit := n.maxDays(); days > limit {
		days = limit
	}
	return Window{
		Start: n.now().Add(-time.Duration(days) * 24 * time.Hour),
		Days:  days,
	}
}

// Predicate restricts "<alias>"."createdAt" to the window.
func (w Window) Predicate(alias string) Predicate {
	return Predicate{alias: alias, window: w}
}

// Predicate is a window filter that renders with bound arguments.
type Predicate struct {
	alias  string
	window Window
}

// SQL renders the predicate, binding its time arguments through b.
func (p Predicate) SQL(b *store.Binder) string {
	col := store.Column(p.alias, "createdAt")
	d := b.Dialect()
	clause := col + " >= " + b.Bind(d.TimeArg(p.window.Start))
	if p.window.Bounded {
		clause += " AND " + col + " < " + b.Bind(d.TimeArg(p.window.End))
	}
	return clause
}

// Key is a stable cache key for the window.
func (w Window) Key() string {
	if w.Bounded {
		return w.Start.UTC().Format(time.RFC3339) + ".." + w.End.UTC().Format(time.RFC3339)
	}
	return "last:" + strconv.Itoa(w.Days) + "d"
}

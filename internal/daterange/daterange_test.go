package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiwatch/dashboard/internal/store"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testNormalizer() Normalizer {
	return Normalizer{Now: func() time.Time { return fixedNow }}
}

func TestNormalize_RelativeDefaults(t *testing.T) {
	n := testNormalizer()

	for _, r := range []Range{{}, {Days: 0}, {Days: -3}, ParseRange("abc", "", "")} {
		w := n.Normalize(r)
		assert.False(t, w.Bounded)
		assert.Equal(t, DefaultDays, w.Days)
		assert.Equal(t, fixedNow.Add(-7*24*time.Hour), w.Start)
	}
}

func TestNormalize_NonNumericDaysEqualsAbsentDays(t *testing.T) {
	n := testNormalizer()
	assert.Equal(t, n.Normalize(Range{}), n.Normalize(ParseRange("seven", "", "")))
	assert.Equal(t, n.Normalize(Range{}), n.Normalize(ParseRange("", "", "")))
}

func TestNormalize_RelativeDays(t *testing.T) {
	n := testNormalizer()

	w := n.Normalize(Days(30))
	assert.Equal(t, 30, w.Days)
	assert.Equal(t, fixedNow.Add(-30*24*time.Hour), w.Start)

	w = n.Normalize(Days(10_000))
	assert.Equal(t, MaxDays, w.Days)
}

func TestNormalize_AbsoluteSingleDay(t *testing.T) {
	n := testNormalizer()

	w := n.Normalize(Between("2024-01-01", "2024-01-01"))
	require.True(t, w.Bounded)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), w.End)
	assert.Equal(t, 24*time.Hour, w.End.Sub(w.Start))
}

func TestNormalize_AbsoluteIgnoresDays(t *testing.T) {
	n := testNormalizer()
	a := n.Normalize(Range{Days: 30, StartDate: "2024-02-01", EndDate: "2024-02-29"})
	b := n.Normalize(Between("2024-02-01", "2024-02-29"))
	assert.Equal(t, a, b)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), a.End)
}

func TestNormalize_AbsoluteUsesLocation(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	n := Normalizer{Now: func() time.Time { return fixedNow }, Location: bangkok}

	w := n.Normalize(Between("2024-01-01", "2024-01-01"))
	assert.Equal(t, time.Date(2023, 12, 31, 17, 0, 0, 0, time.UTC), w.Start.UTC())
}

func TestNormalize_MalformedOrPartialDatesFallBack(t *testing.T) {
	n := testNormalizer()
	want := n.Normalize(Days(14))

	cases := []Range{
		{Days: 14, StartDate: "2024-01-01"},
		{Days: 14, EndDate: "2024-01-01"},
		{Days: 14, StartDate: "01/01/2024", EndDate: "2024-01-05"},
		{Days: 14, StartDate: "2024-01-01", EndDate: "2024-02-30"},
		{Days: 14, StartDate: "yesterday", EndDate: "today"},
	}
	for _, r := range cases {
		assert.Equal(t, want, n.Normalize(r), "range %+v", r)
	}
}

func TestPredicate_SQL(t *testing.T) {
	n := testNormalizer()

	b := store.Postgres.Binder()
	sql := n.Normalize(Between("2024-01-01", "2024-01-07")).Predicate("r").SQL(b)
	assert.Equal(t, `"r"."createdAt" >= $1 AND "r"."createdAt" < $2`, sql)
	require.Len(t, b.Args(), 2)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), b.Args()[1])

	b = store.SQLite.Binder()
	b.Bind("x")
	sql = n.Normalize(Days(1)).Predicate("").SQL(b)
	assert.Equal(t, `"createdAt" >= ?`, sql)
	require.Len(t, b.Args(), 2)
	assert.Equal(t, "2024-06-14 12:00:00.000", b.Args()[1])
}

func TestWindow_Key(t *testing.T) {
	n := testNormalizer()
	assert.Equal(t, "last:7d", n.Normalize(Range{}).Key())
	assert.Equal(t, "2024-01-01T00:00:00Z..2024-01-02T00:00:00Z", n.Normalize(Between("2024-01-01", "2024-01-01")).Key())
}

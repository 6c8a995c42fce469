package scheduler

import (
	"testing"
	"time"

	"github.com/region23/sessionboard/internal/storage/models"
	"github.com/region23/sessionboard/internal/testutils"
)

func TestStartOfWeek(t *testing.T) {
	loc := testutils.MustLocation(t, "Europe/Berlin")
	monday := time.Date(2024, 4, 29, 0, 0, 0, 0, loc)

	tests := []struct {
		name string
		in   time.Time
	}{
		{"monday midnight", monday},
		{"thursday noon", time.Date(2024, 5, 2, 12, 0, 0, 0, loc)},
		{"sunday late", time.Date(2024, 5, 5, 23, 59, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StartOfWeek(tt.in)
			testutils.AssertTrue(t, got.Equal(monday), "expected "+monday.String()+", got "+got.String())
		})
	}
}

func TestInitialWeek_Cutoff(t *testing.T) {
	loc := time.UTC
	current := time.Date(2024, 4, 29, 0, 0, 0, 0, loc)
	next := time.Date(2024, 5, 6, 0, 0, 0, 0, loc)
	cutoff := DefaultCutoff()

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"monday", time.Date(2024, 4, 29, 8, 0, 0, 0, loc), current},
		{"thursday before cutoff", time.Date(2024, 5, 2, 11, 0, 0, 0, loc), current},
		{"thursday at cutoff", time.Date(2024, 5, 2, 11, 30, 0, 0, loc), current},
		{"thursday after cutoff", time.Date(2024, 5, 2, 11, 31, 0, 0, loc), next},
		{"saturday", time.Date(2024, 5, 4, 9, 0, 0, 0, loc), next},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InitialWeek(tt.now, cutoff)
			testutils.AssertTrue(t, got.Equal(tt.want), "unexpected initial week "+got.String())
		})
	}
}

func TestShiftWeek_AcrossDST(t *testing.T) {
	loc := testutils.MustLocation(t, "Europe/Berlin")
	// Переход на летнее время 31 марта 2024
	monday := time.Date(2024, 3, 25, 0, 0, 0, 0, loc)

	next := ShiftWeek(monday, 1)
	testutils.AssertEqual(t, 0, next.Hour(), "midnight kept")
	testutils.AssertEqual(t, 1, next.Day(), "april 1st")

	testutils.AssertTrue(t, ShiftWeek(next, -1).Equal(monday), "shift back restores")
}

func TestDayOfWeek(t *testing.T) {
	monday := time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC)
	testutils.AssertEqual(t, models.Date{Year: 2024, Month: time.May, Day: 2}, DayOfWeek(monday, time.Thursday), "thursday")
	testutils.AssertEqual(t, models.Date{Year: 2024, Month: time.May, Day: 5}, DayOfWeek(monday, time.Sunday), "sunday ends the week")
}

func TestFormatWeekRange(t *testing.T) {
	tests := []struct {
		monday time.Time
		want   string
	}{
		{time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), "May 6 - 12, 2024"},
		{time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC), "April 29 - May 5, 2024"},
		{time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), "December 30, 2024 - January 5, 2025"},
	}

	for _, tt := range tests {
		testutils.AssertEqual(t, tt.want, FormatWeekRange(tt.monday), "week range")
	}
}

func TestSessionDates(t *testing.T) {
	from := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)

	dates, err := SessionDates(from, 30, time.Thursday)
	testutils.AssertNoError(t, err, "session dates")

	want := []models.Date{
		{Year: 2024, Month: time.May, Day: 2},
		{Year: 2024, Month: time.May, Day: 9},
		{Year: 2024, Month: time.May, Day: 16},
		{Year: 2024, Month: time.May, Day: 23},
		{Year: 2024, Month: time.May, Day: 30},
	}
	testutils.AssertEqual(t, want, dates, "thursdays in 30 days")
}

func TestSessionDates_IncludesToday(t *testing.T) {
	from := time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC)

	dates, err := SessionDates(from, 7, time.Thursday)
	testutils.AssertNoError(t, err, "session dates")
	testutils.AssertEqual(t, []models.Date{{Year: 2024, Month: time.May, Day: 2}}, dates, "today only")

	dates, err = SessionDates(from, 0, time.Thursday)
	testutils.AssertNoError(t, err, "empty range")
	testutils.AssertEqual(t, 0, len(dates), "no dates")
}

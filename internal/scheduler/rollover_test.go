package scheduler

import (
	"testing"
	"time"

	"github.com/region23/sessionboard/internal/testutils"
)

func TestNewRollover_InvalidSpec(t *testing.T) {
	e, _, _, _ := setupEngine(t)

	_, err := NewRollover(e, "every thursday", testutils.SetupTestLogger())
	testutils.AssertError(t, err, "invalid cron spec")
}

func TestRollover_NextIsThursday(t *testing.T) {
	e, _, _, _ := setupEngine(t)

	r, err := NewRollover(e, "", testutils.SetupTestLogger())
	testutils.AssertNoError(t, err, "default spec")

	r.Start()
	defer r.Stop(testutils.TestContext())

	next := r.Next()
	testutils.AssertEqual(t, time.Thursday, next.Weekday(), "fires on thursday")
	testutils.AssertEqual(t, 11, next.Hour(), "hour")
	testutils.AssertEqual(t, 31, next.Minute(), "minute")
}

func TestRollover_RunMovesCursor(t *testing.T) {
	e, _, _, clock := setupEngine(t)

	r, err := NewRollover(e, DefaultRolloverSpec, testutils.SetupTestLogger())
	testutils.AssertNoError(t, err, "rollover")

	r.run()
	testutils.AssertTrue(t, e.Week().Equal(testMonday), "nothing happens before cutoff")

	clock.Set(at(11, 31))
	r.run()
	testutils.AssertTrue(t, e.Week().Equal(testMonday.AddDate(0, 0, 7)), "cursor moved after cutoff")
}

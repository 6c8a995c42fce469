package service

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/region23/sessionboard/internal/scheduler"
	"github.com/region23/sessionboard/internal/storage/models"
	"github.com/region23/sessionboard/internal/testutils"
	"github.com/region23/sessionboard/pkg/errors"
)

const firstSession = "session-2024-05-02-09-35"

type fakeReminders struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
}

func newFakeReminders() *fakeReminders {
	return &fakeReminders{scheduled: make(map[string]time.Time)}
}

func (f *fakeReminders) Schedule(ctx context.Context, r scheduler.Reminder, notifyAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[r.Key] = notifyAt
	return nil
}

func (f *fakeReminders) Cancel(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scheduled, key)
	return nil
}

func (f *fakeReminders) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled)
}

func (f *fakeReminders) Start(ctx context.Context) error { return nil }
func (f *fakeReminders) Stop() error                     { return nil }

func setupService(t *testing.T) (*Service, *fakeReminders, *testutils.Clock) {
	t.Helper()
	repo, _ := testutils.SetupTestRepository(t, time.UTC)
	clock := testutils.NewClock(time.Date(2024, 4, 29, 8, 0, 0, 0, time.UTC))
	engine := scheduler.NewEngine(testutils.TestContext(), repo, scheduler.EngineConfig{
		Location: time.UTC,
		Now:      clock.Now,
		Logger:   testutils.SetupTestLogger(),
	})
	reminders := newFakeReminders()
	svc := New(engine, Options{
		Reminders:    reminders,
		ReminderLead: 15 * time.Minute,
		PastLimit:    3,
		Logger:       testutils.SetupTestLogger(),
	})
	return svc, reminders, clock
}

func assertCode(t *testing.T, err error, want *errors.AppError) {
	t.Helper()
	if !stderrors.Is(err, want) {
		t.Fatalf("expected %s, got %v", want.Code, err)
	}
}

func TestService_Week(t *testing.T) {
	svc, _, _ := setupService(t)

	view := svc.Week()
	testutils.AssertEqual(t, "April 29 - May 5, 2024", view.Label, "week label")
	testutils.AssertTrue(t, view.InFuture, "current week")
	testutils.AssertEqual(t, 3, len(view.Sessions), "three sessions")
	testutils.AssertEqual(t, 35, view.Sessions[0].Available, "free session")
	testutils.AssertTrue(t, !view.Sessions[0].Past, "session not past")
}

func TestService_SignUp(t *testing.T) {
	svc, reminders, _ := setupService(t)
	ctx := testutils.TestContext()

	slot, err := svc.SignUp(ctx, SignUpInput{
		SessionID: firstSession,
		Start:     "09:35",
		End:       "09:45",
		Attendee:  " Ada ",
		Topic:     "Intro",
		ChatID:    42,
	})
	testutils.AssertNoError(t, err, "sign up")
	testutils.AssertEqual(t, "slot-2024-05-02-09-35-09-45", slot.ID.String(), "slot id")
	testutils.AssertEqual(t, "Ada", slot.Attendee, "attendee trimmed")
	testutils.AssertEqual(t, 25, svc.Week().Sessions[0].Available, "available minutes")

	testutils.AssertEqual(t, 1, reminders.Pending(), "reminder scheduled")
	testutils.AssertEqual(t, time.Date(2024, 5, 2, 9, 20, 0, 0, time.UTC), reminders.scheduled[slot.ID.String()], "reminder lead")
}

func TestService_SignUpFirstFreeStart(t *testing.T) {
	svc, reminders, _ := setupService(t)
	ctx := testutils.TestContext()

	_, err := svc.SignUp(ctx, SignUpInput{SessionID: firstSession, Minutes: 10, Attendee: "Ada", Topic: "One"})
	testutils.AssertNoError(t, err, "first")

	second, err := svc.SignUp(ctx, SignUpInput{SessionID: firstSession, Minutes: 15, Attendee: "Bob", Topic: "Two"})
	testutils.AssertNoError(t, err, "second")
	testutils.AssertEqual(t, "slot-2024-05-02-09-45-10-00", second.ID.String(), "starts after previous slot")

	_, err = svc.SignUp(ctx, SignUpInput{SessionID: firstSession, Minutes: 15, Attendee: "Eve", Topic: "Three"})
	assertCode(t, err, errors.ErrSlotOutsideSession)

	testutils.AssertEqual(t, 0, reminders.Pending(), "no reminders without chat")
}

func TestService_SignUpRejections(t *testing.T) {
	svc, _, clock := setupService(t)
	ctx := testutils.TestContext()

	valid := SignUpInput{SessionID: firstSession, Start: "09:35", Minutes: 10, Attendee: "Ada", Topic: "Intro"}

	tests := []struct {
		name   string
		modify func(in *SignUpInput)
		want   *errors.AppError
	}{
		{"bad session id", func(in *SignUpInput) { in.SessionID = "session-x" }, errors.ErrInvalidSessionID},
		{"other week", func(in *SignUpInput) { in.SessionID = "session-2024-05-09-09-35" }, errors.ErrSessionNotFound},
		{"bad time", func(in *SignUpInput) { in.Start = "9:35am" }, errors.ErrInvalidTime},
		{"no duration", func(in *SignUpInput) { in.Minutes = 0 }, errors.ErrInvalidDuration},
		{"no attendee", func(in *SignUpInput) { in.Attendee = "" }, errors.ErrInvalidAttendee},
		{"no topic", func(in *SignUpInput) { in.Topic = "" }, errors.ErrInvalidTopic},
		{"too long", func(in *SignUpInput) { in.Minutes = 40 }, errors.ErrSlotOutsideSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)
			_, err := svc.SignUp(ctx, in)
			assertCode(t, err, tt.want)
		})
	}

	t.Run("capacity", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpInput{SessionID: firstSession, Start: "09:35", Minutes: 30, Attendee: "Ada", Topic: "Long"})
		testutils.AssertNoError(t, err, "fill session")
		_, err = svc.SignUp(ctx, SignUpInput{SessionID: firstSession, Start: "09:35", Minutes: 10, Attendee: "Bob", Topic: "Late"})
		assertCode(t, err, errors.ErrNotEnoughCapacity)
	})

	t.Run("canceled", func(t *testing.T) {
		_, err := svc.CancelSession(ctx, "2024-05-02", false)
		testutils.AssertNoError(t, err, "cancel session")
		_, err = svc.SignUp(ctx, SignUpInput{SessionID: "session-2024-05-02-10-10", Minutes: 10, Attendee: "Bob", Topic: "T"})
		assertCode(t, err, errors.ErrSessionCanceled)
	})

	t.Run("past week", func(t *testing.T) {
		svc.PrevWeek(ctx)
		defer svc.NextWeek(ctx)
		_, err := svc.SignUp(ctx, SignUpInput{SessionID: "session-2024-04-25-09-35", Minutes: 10, Attendee: "Bob", Topic: "T"})
		assertCode(t, err, errors.ErrWeekInPast)
	})

	t.Run("started", func(t *testing.T) {
		_, err := svc.CancelSession(ctx, "2024-05-02", true)
		testutils.AssertNoError(t, err, "restore session")

		clock.Set(time.Date(2024, 5, 2, 10, 20, 0, 0, time.UTC))
		_, err = svc.SignUp(ctx, SignUpInput{SessionID: "session-2024-05-02-10-55", Start: "10:55", Minutes: 5, Attendee: "Bob", Topic: "T"})
		testutils.AssertNoError(t, err, "future session still open")
		_, err = svc.SignUp(ctx, SignUpInput{SessionID: "session-2024-05-02-10-10", Start: "10:10", Minutes: 5, Attendee: "Bob", Topic: "T"})
		assertCode(t, err, errors.ErrSessionInPast)
	})
}

func TestService_EditSignUp(t *testing.T) {
	svc, reminders, _ := setupService(t)
	ctx := testutils.TestContext()

	slot, err := svc.SignUp(ctx, SignUpInput{SessionID: firstSession, Start: "09:35", Minutes: 30, Attendee: "Ada", Topic: "Intro", ChatID: 42})
	testutils.AssertNoError(t, err, "sign up")

	// Собственные 30 минут не мешают расширить запись до всего окна
	edited, err := svc.EditSignUp(ctx, slot.ID.String(), EditInput{Minutes: 35, Topic: "Intro, extended", Requester: "ada"})
	testutils.AssertNoError(t, err, "edit")
	testutils.AssertEqual(t, "slot-2024-05-02-09-35-10-10", edited.ID.String(), "new id")
	testutils.AssertEqual(t, "Ada", edited.Attendee, "attendee kept")
	testutils.AssertEqual(t, "Intro, extended", edited.Topic, "topic changed")
	testutils.AssertEqual(t, 0, svc.Week().Sessions[0].Available, "window full")

	_, moved := reminders.scheduled[edited.ID.String()]
	testutils.AssertTrue(t, moved, "reminder follows new id")
	testutils.AssertEqual(t, 1, reminders.Pending(), "old reminder dropped")

	_, err = svc.EditSignUp(ctx, edited.ID.String(), EditInput{Topic: "Hijack", Requester: "Mallory"})
	assertCode(t, err, errors.ErrNotSlotOwner)

	_, err = svc.EditSignUp(ctx, slot.ID.String(), EditInput{Topic: "Gone"})
	assertCode(t, err, errors.ErrSlotNotFound)

	shifted, err := svc.EditSignUp(ctx, edited.ID.String(), EditInput{Start: "09:40", Minutes: 10})
	testutils.AssertNoError(t, err, "shift")
	testutils.AssertEqual(t, "slot-2024-05-02-09-40-09-50", shifted.ID.String(), "shifted id")
}

func TestService_CancelSignUp(t *testing.T) {
	svc, reminders, _ := setupService(t)
	ctx := testutils.TestContext()

	slot, err := svc.SignUp(ctx, SignUpInput{SessionID: firstSession, Minutes: 10, Attendee: "Ada", Topic: "Intro", ChatID: 42})
	testutils.AssertNoError(t, err, "sign up")

	assertCode(t, svc.CancelSignUp(ctx, slot.ID.String(), "Bob"), errors.ErrNotSlotOwner)
	testutils.AssertNoError(t, svc.CancelSignUp(ctx, slot.ID.String(), "ADA"), "owner cancels")
	testutils.AssertEqual(t, 0, reminders.Pending(), "reminder canceled")

	assertCode(t, svc.CancelSignUp(ctx, slot.ID.String(), ""), errors.ErrSlotNotFound)
	assertCode(t, svc.CancelSignUp(ctx, "nope", ""), errors.ErrInvalidSlotID)
}

func TestService_AttendeeSlotsAndLists(t *testing.T) {
	svc, _, clock := setupService(t)
	ctx := testutils.TestContext()

	svc.SignUp(ctx, SignUpInput{SessionID: firstSession, Minutes: 10, Attendee: "Ada", Topic: "One"})
	svc.SignUp(ctx, SignUpInput{SessionID: firstSession, Minutes: 10, Attendee: "Bob", Topic: "Two"})
	svc.SignUp(ctx, SignUpInput{SessionID: "session-2024-05-02-10-55", Minutes: 10, Attendee: "ada", Topic: "Three"})

	testutils.AssertEqual(t, 2, len(svc.AttendeeSlots("ADA")), "case-insensitive match")

	clock.Set(time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC))
	list := svc.Slots()
	testutils.AssertEqual(t, 1, len(list.Upcoming), "upcoming")
	testutils.AssertEqual(t, 2, len(list.Past), "past")
	testutils.AssertEqual(t, "Bob", list.Past[0].Attendee, "most recent past first")
}

func TestService_CancelSessionAndUpcoming(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := testutils.TestContext()

	_, err := svc.CancelSession(ctx, "02.05.2024", false)
	assertCode(t, err, errors.ErrInvalidDate)

	changed, err := svc.CancelSession(ctx, "2024-05-09", false)
	testutils.AssertNoError(t, err, "cancel")
	testutils.AssertTrue(t, changed, "set changed")

	dates, err := svc.UpcomingSessions()
	testutils.AssertNoError(t, err, "upcoming")
	testutils.AssertEqual(t, 4, len(dates), "thursdays in 30 days")
	testutils.AssertEqual(t, scheduler.SessionDate{Date: models.Date{Year: 2024, Month: time.May, Day: 9}, Canceled: true}, dates[1], "canceled flag")

	changed, err = svc.CancelSession(ctx, "2024-05-09", true)
	testutils.AssertNoError(t, err, "restore")
	testutils.AssertTrue(t, changed, "restored")
}

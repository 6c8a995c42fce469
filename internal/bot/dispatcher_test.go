package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	botservice "github.com/region23/sessionboard/internal/bot/service"
	"github.com/region23/sessionboard/internal/scheduler"
	"github.com/region23/sessionboard/internal/service"
	sbmodels "github.com/region23/sessionboard/internal/storage/models"
	"github.com/region23/sessionboard/internal/testutils"
)

const adminID = 100

type fakeAPI struct {
	mu       sync.Mutex
	messages []*tgbot.SendMessageParams
	answers  []string
	deleted  []int
}

func (f *fakeAPI) SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, params)
	return &models.Message{ID: len(f.messages)}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, params.Text)
	return true, nil
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, params *tgbot.DeleteMessageParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, params.MessageID)
	return true, nil
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("no messages sent")
	}
	return f.messages[len(f.messages)-1].Text
}

func (f *fakeAPI) last(t *testing.T) *tgbot.SendMessageParams {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("no messages sent")
	}
	return f.messages[len(f.messages)-1]
}

func setupDispatcher(t *testing.T) (*Dispatcher, *fakeAPI, *service.Service) {
	t.Helper()
	repo, _ := testutils.SetupTestRepository(t, time.UTC)
	clock := testutils.NewClock(time.Date(2024, 4, 29, 8, 0, 0, 0, time.UTC))
	engine := scheduler.NewEngine(testutils.TestContext(), repo, scheduler.EngineConfig{
		Location: time.UTC,
		Now:      clock.Now,
		Logger:   testutils.SetupTestLogger(),
	})
	board := service.New(engine, service.Options{Logger: testutils.SetupTestLogger()})

	api := &fakeAPI{}
	messenger := botservice.NewService(api, []int64{adminID}, testutils.SetupTestLogger())
	d := NewDispatcher(board, messenger, testutils.SetupTestLogger())
	t.Cleanup(d.Close)
	return d, api, board
}

func message(userID int64, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   1,
			Chat: models.Chat{ID: userID, Type: "private"},
			From: &models.User{ID: userID, FirstName: "Ada", LastName: "Lovelace"},
			Text: text,
		},
	}
}

func callback(userID int64, data string, messageID int) *models.Update {
	return &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb",
			From: models.User{ID: userID, FirstName: "Ada", LastName: "Lovelace"},
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: messageID, Chat: models.Chat{ID: userID}},
			},
			Data: data,
		},
	}
}

func TestDispatcher_Help(t *testing.T) {
	d, api, _ := setupDispatcher(t)
	ctx := testutils.TestContext()

	d.HandleUpdate(ctx, nil, message(1, "/start"))
	testutils.AssertTrue(t, strings.Contains(api.lastText(t), "/signup"), "help lists sign-up")
	testutils.AssertTrue(t, !strings.Contains(api.lastText(t), "/cancelsession"), "no admin help for users")

	d.HandleUpdate(ctx, nil, message(adminID, "/help@sessionboard_bot"))
	testutils.AssertTrue(t, strings.Contains(api.lastText(t), "/cancelsession"), "admin help")

	d.HandleUpdate(ctx, nil, message(1, "hello"))
	testutils.AssertTrue(t, strings.Contains(api.lastText(t), "/help"), "default reply")
}

func TestDispatcher_WeekNavigation(t *testing.T) {
	d, api, board := setupDispatcher(t)
	ctx := testutils.TestContext()

	d.HandleUpdate(ctx, nil, message(1, "/week"))
	text := api.lastText(t)
	testutils.AssertTrue(t, strings.HasPrefix(text, "Неделя: April 29 - May 5, 2024"), "week label: "+text)
	testutils.AssertTrue(t, strings.Contains(text, "1. Session 1, 02.05 09:35 - 10:10 (свободно 35 мин)"), "numbered session")
	_, ok := api.last(t).ReplyMarkup.(*models.InlineKeyboardMarkup)
	testutils.AssertTrue(t, ok, "navigation keyboard")

	d.HandleUpdate(ctx, nil, message(1, "/next"))
	testutils.AssertTrue(t, strings.HasPrefix(api.lastText(t), "Неделя: May 6 - 12, 2024"), "next week")

	d.HandleUpdate(ctx, nil, callback(1, "WEEK:prev", 5))
	testutils.AssertTrue(t, strings.HasPrefix(api.lastText(t), "Неделя: April 29 - May 5, 2024"), "prev via button")
	testutils.AssertEqual(t, "April 29 - May 5, 2024", board.Week().Label, "cursor restored")
}

func TestDispatcher_SignUpAndCancel(t *testing.T) {
	d, api, board := setupDispatcher(t)
	ctx := testutils.TestContext()

	d.HandleUpdate(ctx, nil, message(1, "/signup 1 10 Profiling Go"))
	testutils.AssertTrue(t, strings.HasPrefix(api.lastText(t), "Вы записаны: Session 1, 02.05 09:35 - 09:45"), "confirmation: "+api.lastText(t))

	slots := board.AttendeeSlots("Ada Lovelace")
	testutils.AssertEqual(t, 1, len(slots), "slot stored")
	testutils.AssertEqual(t, "Profiling Go", slots[0].Topic, "topic joined from args")

	d.HandleUpdate(ctx, nil, message(1, "/mine"))
	kb, ok := api.last(t).ReplyMarkup.(*models.InlineKeyboardMarkup)
	testutils.AssertTrue(t, ok, "cancel keyboard")
	data := kb.InlineKeyboard[0][0].CallbackData
	testutils.AssertEqual(t, "CANCEL:slot-2024-05-02-09-35-09-45", data, "cancel button")

	other := callback(2, data, 7)
	other.CallbackQuery.From.FirstName = "Bob"
	d.HandleUpdate(ctx, nil, other)
	testutils.AssertEqual(t, 1, len(board.AttendeeSlots("Ada Lovelace")), "other user cannot cancel")

	d.HandleUpdate(ctx, nil, callback(1, data, 7))
	testutils.AssertEqual(t, 0, len(board.AttendeeSlots("Ada Lovelace")), "slot canceled")
	testutils.AssertEqual(t, []int{7}, api.deleted, "stale keyboard removed")
	testutils.AssertEqual(t, "Запись отменена", api.answers[len(api.answers)-1], "callback answered")
}

func TestDispatcher_SignUpErrors(t *testing.T) {
	d, api, _ := setupDispatcher(t)
	ctx := testutils.TestContext()

	tests := []struct {
		text string
		want string
	}{
		{"/signup", "Формат: /signup"},
		{"/signup 9 10 Topic", "Номер сессии должен быть от 1 до 3"},
		{"/signup 1 ten Topic", "Длительность указывается числом минут"},
		{"/signup 1 7 Topic", "Длительность должна быть не меньше 5 минут"},
		{"/signup 1 40 Topic", "Запись не помещается в окно сессии"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d.HandleUpdate(ctx, nil, message(1, tt.text))
			testutils.AssertTrue(t, strings.Contains(api.lastText(t), tt.want), "reply: "+api.lastText(t))
		})
	}
}

func TestDispatcher_AdminCommands(t *testing.T) {
	d, api, board := setupDispatcher(t)
	ctx := testutils.TestContext()
	may2 := sbmodels.Date{Year: 2024, Month: time.May, Day: 2}

	d.HandleUpdate(ctx, nil, message(1, "/cancelsession 2024-05-02"))
	testutils.AssertTrue(t, strings.Contains(api.lastText(t), "только администраторам"), "rejected for users")
	testutils.AssertTrue(t, !board.Engine().IsCanceled(may2), "date untouched")

	d.HandleUpdate(ctx, nil, message(adminID, "/cancelsession 2024-05-02"))
	testutils.AssertEqual(t, "Сессии 2024-05-02 отменены.", api.lastText(t), "canceled")
	testutils.AssertTrue(t, board.Engine().IsCanceled(may2), "date canceled")

	d.HandleUpdate(ctx, nil, message(adminID, "/cancelsession 2024-05-02"))
	testutils.AssertEqual(t, "Сессии 2024-05-02 уже отменены.", api.lastText(t), "idempotent")

	d.HandleUpdate(ctx, nil, message(adminID, "/sessions"))
	testutils.AssertTrue(t, strings.Contains(api.lastText(t), "2024-05-02: отменены"), "listed as canceled: "+api.lastText(t))

	d.HandleUpdate(ctx, nil, message(1, "/signup 1 10 Topic"))
	testutils.AssertEqual(t, "Сессии этой даты отменены.", api.lastText(t), "sign-up blocked")

	d.HandleUpdate(ctx, nil, message(adminID, "/restore 2024-05-02"))
	testutils.AssertEqual(t, "Сессии 2024-05-02 снова по расписанию.", api.lastText(t), "restored")

	d.HandleUpdate(ctx, nil, message(adminID, "/restore tomorrow"))
	testutils.AssertTrue(t, strings.Contains(api.lastText(t), "Неверная дата"), "invalid date")

	d.HandleUpdate(ctx, nil, message(adminID, "/restore"))
	testutils.AssertEqual(t, "Формат: /restore <ГГГГ-ММ-ДД>", api.lastText(t), "usage")
}

func TestDispatcher_RateLimit(t *testing.T) {
	d, api, _ := setupDispatcher(t)
	ctx := testutils.TestContext()

	for i := 0; i < userRequestsPerMinute+5; i++ {
		d.HandleUpdate(ctx, nil, message(1, "/start"))
	}
	testutils.AssertEqual(t, userRequestsPerMinute, len(api.messages), "excess updates dropped")
}

package bot

import (
	"context"
	"strconv"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/sessionboard/internal/bot/handlers"
	botservice "github.com/region23/sessionboard/internal/bot/service"
	"github.com/region23/sessionboard/internal/middleware"
	"github.com/region23/sessionboard/internal/service"
	"github.com/region23/sessionboard/pkg/logger"
	"github.com/region23/sessionboard/pkg/metrics"
)

// userRequestsPerMinute ограничивает частоту обновлений от одного пользователя
const userRequestsPerMinute = 30

// Dispatcher управляет обработкой входящих обновлений от Telegram
type Dispatcher struct {
	messenger       *botservice.Service
	limiter         *middleware.RateLimiter
	log             *logger.Logger
	startHandler    *handlers.StartHandler
	weekHandler     *handlers.WeekHandler
	signUpHandler   *handlers.SignUpHandler
	adminHandler    *handlers.AdminHandler
	callbackHandler *handlers.CallbackHandler
	defaultHandler  *handlers.DefaultHandler
}

// NewDispatcher создает новый диспетчер обновлений
func NewDispatcher(board *service.Service, messenger *botservice.Service, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	week := handlers.NewWeekHandler(board, messenger, log)
	return &Dispatcher{
		messenger:       messenger,
		limiter:         middleware.NewRateLimiter(userRequestsPerMinute, time.Minute, log),
		log:             log,
		startHandler:    handlers.NewStartHandler(messenger, log),
		weekHandler:     week,
		signUpHandler:   handlers.NewSignUpHandler(board, messenger, log),
		adminHandler:    handlers.NewAdminHandler(board, messenger, log),
		callbackHandler: handlers.NewCallbackHandler(board, messenger, week, log),
		defaultHandler:  handlers.NewDefaultHandler(messenger, log),
	}
}

// HandleUpdate обрабатывает входящее обновление от Telegram.
// Сигнатура совпадает с bot.HandlerFunc.
func (d *Dispatcher) HandleUpdate(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	userID, ok := senderID(update)
	if !ok {
		metrics.RecordBotUpdate("unknown")
		d.log.Debug("Received unsupported update", logger.Int64("update_id", update.ID))
		return
	}

	if !d.limiter.Allow("user_" + strconv.FormatInt(userID, 10)) {
		metrics.RecordBotUpdate("rate_limited")
		d.log.Warn("User rate limit exceeded", logger.Int64("user_id", userID))
		return
	}

	if update.CallbackQuery != nil {
		metrics.RecordBotUpdate("callback")
		d.log.Debug("Received callback query",
			logger.Int64("user_id", userID),
			logger.String("data", update.CallbackQuery.Data),
		)
		d.callbackHandler.Handle(ctx, b, update)
		return
	}

	metrics.RecordBotUpdate("message")
	d.log.Debug("Received message",
		logger.Int64("chat_id", update.Message.Chat.ID),
		logger.String("text", update.Message.Text),
	)

	cmd, _ := handlers.ParseCommand(update.Message.Text)
	switch cmd {
	case "/start", "/help":
		d.startHandler.Handle(ctx, b, update)
	case "/week", "/next", "/prev":
		d.weekHandler.Handle(ctx, b, update)
	case "/signup", "/mine":
		d.signUpHandler.Handle(ctx, b, update)
	case "/sessions", "/cancelsession", "/restore":
		d.adminHandler.Handle(ctx, b, update)
	default:
		d.defaultHandler.Handle(ctx, b, update)
	}
}

// Close останавливает очистку rate limiter
func (d *Dispatcher) Close() {
	d.limiter.Close()
}

func senderID(update *models.Update) (int64, bool) {
	switch {
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID, true
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, true
	case update.Message != nil:
		return update.Message.Chat.ID, true
	}
	return 0, false
}

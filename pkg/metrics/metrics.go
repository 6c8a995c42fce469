package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики доски записи на сессии
var (
	// Метрики записей
	SignUps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionboard_signups_total",
			Help: "Общее количество записей на слоты",
		},
	)

	SignUpEdits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionboard_signup_edits_total",
			Help: "Общее количество изменений записей",
		},
	)

	SignUpCancellations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionboard_signup_cancellations_total",
			Help: "Общее количество отмененных записей",
		},
	)

	RejectedSignUps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionboard_signups_rejected_total",
			Help: "Записи, отклоненные валидацией",
		},
		[]string{"code"},
	)

	// Метрики сессий
	CanceledSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessionboard_canceled_sessions",
			Help: "Количество отмененных дат",
		},
	)

	AvailableMinutes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessionboard_available_minutes",
			Help: "Свободные минуты по сессиям текущей недели",
		},
		[]string{"session"},
	)

	WeekNavigations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionboard_week_navigations_total",
			Help: "Переключения недели",
		},
		[]string{"direction"},
	)

	// Метрики уведомлений
	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionboard_reminders_sent_total",
			Help: "Общее количество отправленных напоминаний",
		},
		[]string{"status"},
	)

	PendingReminders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessionboard_pending_reminders",
			Help: "Количество запланированных напоминаний",
		},
	)

	// Метрики хранилища
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionboard_store_operations_total",
			Help: "Операции с key-value хранилищем",
		},
		[]string{"operation", "status"},
	)

	CorruptRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionboard_corrupt_records_total",
			Help: "Записи хранилища, которые не удалось разобрать",
		},
	)

	// Метрики производительности
	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessionboard_memory_usage_bytes",
			Help: "Использование памяти в байтах",
		},
	)

	GoroutinesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessionboard_goroutines_count",
			Help: "Количество активных горутин",
		},
	)

	// Метрики ошибок
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionboard_errors_total",
			Help: "Общее количество ошибок",
		},
		[]string{"component", "error_type"},
	)

	// Метрики HTTP сервера
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionboard_http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sessionboard_http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Метрики Telegram
	BotUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionboard_bot_updates_total",
			Help: "Обработанные обновления Telegram",
		},
		[]string{"kind"},
	)
)

// RecordSignUp записывает метрику новой записи
func RecordSignUp() {
	SignUps.Inc()
}

// RecordSignUpEdit записывает метрику изменения записи
func RecordSignUpEdit() {
	SignUpEdits.Inc()
}

// RecordSignUpCancellation записывает метрику отмены записи
func RecordSignUpCancellation() {
	SignUpCancellations.Inc()
}

// RecordRejectedSignUp записывает код отказа валидации
func RecordRejectedSignUp(code string) {
	RejectedSignUps.WithLabelValues(code).Inc()
}

// RecordWeekNavigation записывает переключение недели
func RecordWeekNavigation(direction string) {
	WeekNavigations.WithLabelValues(direction).Inc()
}

// RecordReminder записывает метрику отправки напоминания
func RecordReminder(status string) {
	RemindersSent.WithLabelValues(status).Inc()
}

// RecordStoreOperation записывает метрику операции с хранилищем
func RecordStoreOperation(operation, status string) {
	StoreOperations.WithLabelValues(operation, status).Inc()
}

// RecordCorruptRecord записывает метрику испорченной записи
func RecordCorruptRecord() {
	CorruptRecords.Inc()
}

// RecordError записывает метрику ошибки
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest записывает метрику HTTP запроса
func RecordHTTPRequest(method, endpoint, status string) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

// RecordBotUpdate записывает тип обновления Telegram
func RecordBotUpdate(kind string) {
	BotUpdates.WithLabelValues(kind).Inc()
}

// SetCanceledSessions устанавливает количество отмененных дат
func SetCanceledSessions(count float64) {
	CanceledSessions.Set(count)
}

// SetAvailableMinutes устанавливает количество свободных минут для сессии
func SetAvailableMinutes(sessionID string, minutes float64) {
	AvailableMinutes.WithLabelValues(sessionID).Set(minutes)
}

// SetPendingReminders устанавливает количество ожидающих напоминаний
func SetPendingReminders(count float64) {
	PendingReminders.Set(count)
}

package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError представляет ошибку приложения с кодом и контекстом
type AppError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
	Context interface{} `json:"context,omitempty"`
}

// Error реализует интерфейс error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду, так что копии из WithContext/WithError
// совпадают с предопределенными значениями
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithContext добавляет контекст к ошибке
func (e *AppError) WithContext(ctx interface{}) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Context: ctx,
	}
}

// WithError добавляет underlying ошибку
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
		Context: e.Context,
	}
}

// Предопределенные ошибки
var (
	// Ошибки записи
	ErrInvalidAttendee = &AppError{
		Code:    "INVALID_ATTENDEE",
		Message: "attendee name is required",
	}

	ErrInvalidTopic = &AppError{
		Code:    "INVALID_TOPIC",
		Message: "topic is required",
	}

	ErrInvalidDuration = &AppError{
		Code:    "INVALID_DURATION",
		Message: "duration must be a positive multiple of 5 minutes",
	}

	ErrSlotOutsideSession = &AppError{
		Code:    "SLOT_OUTSIDE_SESSION",
		Message: "slot must lie within the session window",
	}

	ErrNotEnoughCapacity = &AppError{
		Code:    "NOT_ENOUGH_CAPACITY",
		Message: "not enough free minutes left in the session",
	}

	ErrSessionCanceled = &AppError{
		Code:    "SESSION_CANCELED",
		Message: "session is canceled",
	}

	ErrSessionInPast = &AppError{
		Code:    "SESSION_IN_PAST",
		Message: "session has already started",
	}

	ErrWeekInPast = &AppError{
		Code:    "WEEK_IN_PAST",
		Message: "selected week is in the past",
	}

	ErrSessionNotFound = &AppError{
		Code:    "SESSION_NOT_FOUND",
		Message: "session not found in the current week",
	}

	ErrSlotNotFound = &AppError{
		Code:    "SLOT_NOT_FOUND",
		Message: "slot not found",
	}

	ErrNotSlotOwner = &AppError{
		Code:    "NOT_SLOT_OWNER",
		Message: "slot belongs to another attendee",
	}

	// Ошибки валидации
	ErrInvalidSessionID = &AppError{
		Code:    "INVALID_SESSION_ID",
		Message: "invalid session id",
	}

	ErrInvalidSlotID = &AppError{
		Code:    "INVALID_SLOT_ID",
		Message: "invalid slot id",
	}

	ErrInvalidDate = &AppError{
		Code:    "INVALID_DATE",
		Message: "invalid date",
	}

	ErrInvalidTime = &AppError{
		Code:    "INVALID_TIME",
		Message: "invalid time",
	}

	ErrInvalidRequest = &AppError{
		Code:    "INVALID_REQUEST",
		Message: "invalid request body",
	}

	// Системные ошибки
	ErrStorage = &AppError{
		Code:    "STORAGE",
		Message: "storage error",
	}

	ErrCorruptData = &AppError{
		Code:    "CORRUPT_DATA",
		Message: "stored data could not be parsed",
	}

	ErrConfigurationInvalid = &AppError{
		Code:    "CONFIGURATION_INVALID",
		Message: "invalid configuration",
	}

	ErrTelegramAPI = &AppError{
		Code:    "TELEGRAM_API",
		Message: "telegram api error",
	}

	ErrSchedulerStopped = &AppError{
		Code:    "SCHEDULER_STOPPED",
		Message: "scheduler is stopped",
	}
)

// New создает новую ошибку приложения
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap оборачивает обычную ошибку в AppError
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsAppError проверяет, является ли ошибка AppError (с учетом обертки)
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError извлекает AppError из цепочки ошибок
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

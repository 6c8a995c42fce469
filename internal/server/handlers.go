package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/sessionboard/internal/calendar"
	"github.com/region23/sessionboard/internal/service"
	"github.com/region23/sessionboard/pkg/errors"
	"github.com/region23/sessionboard/pkg/logger"
	"github.com/region23/sessionboard/pkg/metrics"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type cancelSessionResponse struct {
	Date     string `json:"date"`
	Canceled bool   `json:"canceled"`
	Changed  bool   `json:"changed"`
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Week())
}

func (s *Server) handleNextWeek(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.NextWeek(r.Context()))
}

func (s *Server) handlePrevWeek(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.PrevWeek(r.Context()))
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	if attendee := r.URL.Query().Get("attendee"); attendee != "" {
		writeJSON(w, http.StatusOK, s.svc.AttendeeSlots(attendee))
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Slots())
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in service.SignUpInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	in.SessionID = r.PathValue("sessionID")

	slot, err := s.svc.SignUp(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (s *Server) handleEditSignUp(w http.ResponseWriter, r *http.Request) {
	var in service.EditInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	slot, err := s.svc.EditSignUp(r.Context(), r.PathValue("slotID"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (s *Server) handleCancelSignUp(w http.ResponseWriter, r *http.Request) {
	err := s.svc.CancelSignUp(r.Context(), r.PathValue("slotID"), r.URL.Query().Get("attendee"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	dates, err := s.svc.UpcomingSessions()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dates)
}

// handleCancelSession отменяет (restore=false) или восстанавливает сессии даты
func (s *Server) handleCancelSession(restore bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.PathValue("date")
		changed, err := s.svc.CancelSession(r.Context(), date, restore)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.logger.WithContext(r.Context()).Info("Session date updated",
			logger.String("date", date),
			logger.Bool("restore", restore),
			logger.Bool("changed", changed),
		)
		writeJSON(w, http.StatusOK, cancelSessionResponse{
			Date:     date,
			Canceled: !restore,
			Changed:  changed,
		})
	}
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	engine := s.svc.Engine()
	body := calendar.Serialize(engine.Sessions(), calendar.Options{
		Name:     "Sessions",
		Canceled: engine.IsCanceled,
		Stamp:    engine.Now(),
	})

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="sessions.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// handleWebhook обрабатывает Telegram webhook
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var update tgmodels.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&update); err != nil {
		s.logger.Error("Failed to decode Telegram update", logger.Error(err))
		metrics.RecordError("webhook", "decode")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if err := validateUpdate(&update); err != nil {
		s.logger.Warn("Invalid Telegram update",
			logger.Int64("update_id", update.ID),
			logger.Error(err),
		)
		// 200, чтобы Telegram не повторял доставку
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	s.onUpdate(ctx, &update)

	s.logger.Debug("Webhook processed",
		logger.Int64("update_id", update.ID),
		logger.Duration("processing_time", time.Since(start)),
	)
	w.WriteHeader(http.StatusOK)
}

// statusFor сопоставляет код ошибки приложения со статусом HTTP
func statusFor(code string) int {
	switch code {
	case errors.ErrSessionNotFound.Code, errors.ErrSlotNotFound.Code:
		return http.StatusNotFound
	case errors.ErrNotSlotOwner.Code:
		return http.StatusForbidden
	case errors.ErrNotEnoughCapacity.Code, errors.ErrSessionCanceled.Code,
		errors.ErrSessionInPast.Code, errors.ErrWeekInPast.Code:
		return http.StatusConflict
	case errors.ErrInvalidAttendee.Code, errors.ErrInvalidTopic.Code, errors.ErrInvalidDuration.Code,
		errors.ErrSlotOutsideSession.Code, errors.ErrInvalidSessionID.Code, errors.ErrInvalidSlotID.Code,
		errors.ErrInvalidDate.Code, errors.ErrInvalidTime.Code, errors.ErrInvalidRequest.Code:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := errors.GetAppError(err)
	if !ok {
		s.logger.WithContext(r.Context()).Error("Unhandled API error", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    "INTERNAL",
			Message: "internal server error",
		})
		return
	}

	status := statusFor(appErr.Code)
	if status == http.StatusInternalServerError {
		s.logger.WithContext(r.Context()).Error("API error", logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: appErr.Code, Message: appErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/sessionboard/pkg/errors"
)

// maxBodyBytes ограничивает размер тела запросов API и webhook
const maxBodyBytes = 1 << 20

// decodeJSON читает тело запроса в dst, отвергая неизвестные поля и хвост после объекта
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return errors.ErrInvalidRequest.WithError(err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.ErrInvalidRequest.WithError(fmt.Errorf("unexpected data after JSON object"))
	}
	return nil
}

// validateUpdate проверяет, что обновление Telegram пришло от человека
// и содержит сообщение или нажатие кнопки
func validateUpdate(update *tgmodels.Update) error {
	if update.ID <= 0 {
		return fmt.Errorf("invalid update id %d", update.ID)
	}

	switch {
	case update.Message != nil:
		if update.Message.From == nil {
			return fmt.Errorf("message without sender")
		}
		if update.Message.From.IsBot {
			return fmt.Errorf("message from bot")
		}
	case update.CallbackQuery != nil:
		if update.CallbackQuery.From.IsBot {
			return fmt.Errorf("callback from bot")
		}
	default:
		return fmt.Errorf("update has neither message nor callback query")
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/region23/sessionboard/internal/storage/models"
	"github.com/region23/sessionboard/pkg/errors"
	"github.com/region23/sessionboard/pkg/metrics"
)

// CanceledSessionsKey: ключ, под которым хранится набор отмененных дат
const CanceledSessionsKey = "canceledSessions"

// slotRecord: сериализованная форма записи
type slotRecord struct {
	ID         string   `json:"id"`
	StartTime  string   `json:"startTime"`
	EndTime    string   `json:"endTime"`
	Attendee   *string  `json:"attendee"`
	Topic      string   `json:"topic"`
	Categories []string `json:"categories,omitempty"`
}

// Repository реализует Storage поверх произвольного KeyValueStore.
// Значение ключа сессии: JSON-массив записей с метками времени ISO-8601.
type Repository struct {
	kv  KeyValueStore
	loc *time.Location
}

// NewRepository создает адаптер хранения. Метки времени при чтении
// переводятся в loc (nil означает time.Local).
func NewRepository(kv KeyValueStore, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.Local
	}
	return &Repository{kv: kv, loc: loc}
}

// Save перезаписывает список записей сессии целиком.
// Пустой список удаляет ключ: Load в обоих случаях вернет пустой список.
func (r *Repository) Save(ctx context.Context, id models.SessionID, slots []models.Slot) error {
	if len(slots) == 0 {
		if err := r.kv.Remove(ctx, id.String()); err != nil {
			metrics.RecordStoreOperation("save_session", "error")
			return errors.ErrStorage.WithError(err).WithContext(map[string]interface{}{
				"key": id.String(),
			})
		}
		metrics.RecordStoreOperation("save_session", "ok")
		return nil
	}

	records := make([]slotRecord, 0, len(slots))
	for _, s := range slots {
		rec := slotRecord{
			ID:         s.ID.String(),
			StartTime:  s.Start.Format(time.RFC3339),
			EndTime:    s.End.Format(time.RFC3339),
			Topic:      s.Topic,
			Categories: s.Categories,
		}
		if s.Attendee != "" {
			attendee := s.Attendee
			rec.Attendee = &attendee
		}
		records = append(records, rec)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode slots for %s: %w", id, err)
	}

	if err := r.kv.Set(ctx, id.String(), string(data)); err != nil {
		metrics.RecordStoreOperation("save_session", "error")
		return errors.ErrStorage.WithError(err).WithContext(map[string]interface{}{
			"key": id.String(),
		})
	}

	metrics.RecordStoreOperation("save_session", "ok")
	return nil
}

// Load возвращает сохраненные записи сессии.
// Отсутствующий ключ дает пустой список без ошибки. Испорченное значение
// дает пустой список и ошибку ErrCorruptData, которую вызывающий может
// только залогировать.
func (r *Repository) Load(ctx context.Context, id models.SessionID) ([]models.Slot, error) {
	raw, ok, err := r.kv.Get(ctx, id.String())
	if err != nil {
		metrics.RecordStoreOperation("load_session", "error")
		return []models.Slot{}, errors.ErrStorage.WithError(err).WithContext(map[string]interface{}{
			"key": id.String(),
		})
	}
	metrics.RecordStoreOperation("load_session", "ok")
	if !ok {
		return []models.Slot{}, nil
	}

	slots, err := r.decodeSlots(raw)
	if err != nil {
		metrics.RecordCorruptRecord()
		return []models.Slot{}, errors.ErrCorruptData.WithError(err).WithContext(map[string]interface{}{
			"key": id.String(),
		})
	}
	return slots, nil
}

func (r *Repository) decodeSlots(raw string) ([]models.Slot, error) {
	var records []slotRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, err
	}

	slots := make([]models.Slot, 0, len(records))
	for i, rec := range records {
		start, err := time.Parse(time.RFC3339Nano, rec.StartTime)
		if err != nil {
			return nil, fmt.Errorf("slot %d: start time: %w", i, err)
		}
		end, err := time.Parse(time.RFC3339Nano, rec.EndTime)
		if err != nil {
			return nil, fmt.Errorf("slot %d: end time: %w", i, err)
		}
		start, end = start.In(r.loc), end.In(r.loc)

		// Идентификатор всегда выводится из интервала, сохраненный игнорируется
		slot := models.NewSlot(start, end, "", rec.Topic, rec.Categories)
		if rec.Attendee != nil {
			slot.Attendee = *rec.Attendee
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// SaveCanceledDates перезаписывает набор отмененных дат целиком
func (r *Repository) SaveCanceledDates(ctx context.Context, dates []models.Date) error {
	values := make([]string, 0, len(dates))
	for _, d := range dates {
		values = append(values, d.String())
	}

	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode canceled dates: %w", err)
	}

	if err := r.kv.Set(ctx, CanceledSessionsKey, string(data)); err != nil {
		metrics.RecordStoreOperation("save_canceled", "error")
		return errors.ErrStorage.WithError(err).WithContext(map[string]interface{}{
			"key": CanceledSessionsKey,
		})
	}

	metrics.RecordStoreOperation("save_canceled", "ok")
	return nil
}

// LoadCanceledDates возвращает набор отмененных дат, пустой при отсутствии
// или порче значения
func (r *Repository) LoadCanceledDates(ctx context.Context) ([]models.Date, error) {
	raw, ok, err := r.kv.Get(ctx, CanceledSessionsKey)
	if err != nil {
		metrics.RecordStoreOperation("load_canceled", "error")
		return []models.Date{}, errors.ErrStorage.WithError(err)
	}
	metrics.RecordStoreOperation("load_canceled", "ok")
	if !ok {
		return []models.Date{}, nil
	}

	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		metrics.RecordCorruptRecord()
		return []models.Date{}, errors.ErrCorruptData.WithError(err).WithContext(map[string]interface{}{
			"key": CanceledSessionsKey,
		})
	}

	dates := make([]models.Date, 0, len(values))
	for _, v := range values {
		d, err := r.parseCanceledDate(v)
		if err != nil {
			metrics.RecordCorruptRecord()
			return []models.Date{}, errors.ErrCorruptData.WithError(err).WithContext(map[string]interface{}{
				"key": CanceledSessionsKey,
			})
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// parseCanceledDate принимает YYYY-MM-DD или полную метку RFC 3339;
// метка переводится в часовой пояс репозитория перед взятием даты
func (r *Repository) parseCanceledDate(v string) (models.Date, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return models.DateOf(t.In(r.loc)), nil
	}
	return models.ParseDate(v)
}

// Close закрывает нижележащее хранилище
func (r *Repository) Close() error {
	return r.kv.Close()
}

// Ping проверяет доступность нижележащего хранилища
func (r *Repository) Ping(ctx context.Context) error {
	return r.kv.Ping(ctx)
}

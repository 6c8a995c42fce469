package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/region23/sessionboard/pkg/logger"
)

// DefaultRolloverSpec срабатывает в четверг в 11:31, через минуту после границы
const DefaultRolloverSpec = "31 11 * * 4"

// Rollover периодически переводит курсор недели вперед после границы
type Rollover struct {
	cron   *cron.Cron
	engine *Engine
	log    *logger.Logger
	spec   string
}

// NewRollover создает задачу переключения недели по cron-выражению spec
// в часовом поясе движка
func NewRollover(engine *Engine, spec string, log *logger.Logger) (*Rollover, error) {
	if spec == "" {
		spec = DefaultRolloverSpec
	}
	if log == nil {
		log = logger.Default()
	}

	r := &Rollover{
		cron:   cron.New(cron.WithLocation(engine.Location())),
		engine: engine,
		log:    log,
		spec:   spec,
	}

	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return nil, fmt.Errorf("invalid rollover schedule %q: %w", spec, err)
	}
	return r, nil
}

// Start запускает cron в фоне
func (r *Rollover) Start() {
	r.cron.Start()
	r.log.Info("Week rollover scheduled",
		logger.String("spec", r.spec),
	)
}

// Stop останавливает cron и ждет завершения запущенной задачи или ctx
func (r *Rollover) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Next возвращает время следующего срабатывания
func (r *Rollover) Next() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (r *Rollover) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if r.engine.RollOver(ctx) {
		r.log.Info("Week rolled over",
			logger.Time("week", r.engine.Week()),
		)
	}
}

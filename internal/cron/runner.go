package cronrunner

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner schedules the settlement sweeps. Jobs receive the process base
// context so an in-flight sweep observes shutdown through ctx.Done.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
	if err != nil {
		return 0, err
	}
	if r.logger != nil {
		r.logger.Debug("cron job registered", zap.String("spec", spec), zap.Int("entry", int(id)))
	}
	return id, nil
}

func (r *Runner) Start() {
	r.cron.Start()
	if r.logger != nil {
		r.logger.Info("cron started", zap.Int("jobs", len(r.cron.Entries())))
	}
}

// Stop halts scheduling and blocks until running jobs return.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	if r.logger != nil {
		r.logger.Info("cron stopped")
	}
}

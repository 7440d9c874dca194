package refreshsvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/masomo-schedule/core"
	"github.com/trezcool/masomo-schedule/core/schedule"
)

var nowFunc = time.Now // mockable

// Refresher keeps every series materialized windowWeeks ahead by periodically running Service.Refresh.
type Refresher struct {
	svc     schedule.Service
	logger  core.Logger
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

func NewRefresher(svc schedule.Service, conf *core.Config, logger core.Logger) (*Refresher, error) {
	r := &Refresher{
		svc:     svc,
		logger:  logger,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		timeout: time.Minute,
	}
	if _, err := r.cron.AddFunc(conf.Schedule.RefreshCron, r.run); err != nil {
		return nil, errors.Wrapf(err, "parsing refresh schedule %q", conf.Schedule.RefreshCron)
	}
	return r, nil
}

func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop stops scheduling new runs and waits for a running one to finish.
func (r *Refresher) Stop(ctx context.Context) error {
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce refreshes every series now. Overlapping runs are skipped.
func (r *Refresher) RunOnce(ctx context.Context) (int, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return 0, nil
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	return r.svc.Refresh(ctx, nowFunc())
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	n, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error(fmt.Sprintf("refreshing schedule: %v", err), err)
		return
	}
	r.logger.Debug(fmt.Sprintf("schedule refreshed: %d occurrences inserted", n))
}

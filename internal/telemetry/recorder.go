package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"roombalink/internal/robot"
	"roombalink/internal/store"
)

// Recorder turns robot state changes into telemetry samples and
// periodically downsamples old samples into hourly aggregates.
type Recorder struct {
	store     *store.Store
	logger    *slog.Logger
	retention time.Duration
	cron      *cron.Cron

	mu   sync.Mutex
	last *store.Sample
	ctx  context.Context
}

// NewRecorder creates a recorder. Raw samples older than retention are
// rolled up and pruned by the hourly maintenance job.
func NewRecorder(st *store.Store, retention time.Duration, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:     st,
		logger:    logger,
		retention: retention,
		cron:      cron.New(),
	}
}

// Start arms the rollup job. ctx is used for the background database work.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
	// Offset from the top of the hour so the rollup does not collide with
	// other on-the-hour activity.
	if _, err := r.cron.AddFunc("17 * * * *", r.rollup); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the rollup job. The returned context is done once any job in
// flight has finished.
func (r *Recorder) Stop() context.Context {
	return r.cron.Stop()
}

// Record appends a sample for the state change. Consecutive identical
// readings are dropped so an idle docked robot does not fill the table.
func (r *Recorder) Record(state robot.State) {
	sample := store.Sample{
		At:             state.UpdatedAt,
		BatteryPercent: state.BatteryPercent,
		BinFull:        state.BinFull,
		Phase:          state.Phase,
		ErrorCode:      state.ErrorCode,
	}
	if sample.At.IsZero() {
		sample.At = time.Now()
	}

	r.mu.Lock()
	if r.last != nil &&
		r.last.BatteryPercent == sample.BatteryPercent &&
		r.last.BinFull == sample.BinFull &&
		r.last.Phase == sample.Phase &&
		r.last.ErrorCode == sample.ErrorCode {
		r.mu.Unlock()
		return
	}
	keep := sample
	r.last = &keep
	ctx := r.ctxOrBackground()
	r.mu.Unlock()

	if err := r.store.InsertSample(ctx, sample); err != nil {
		r.logger.Warn("record telemetry sample", "err", err)
	}
}

func (r *Recorder) rollup() {
	r.mu.Lock()
	ctx := r.ctxOrBackground()
	r.mu.Unlock()
	cutoff := time.Now().Add(-r.retention)
	if err := r.store.RollupHourly(ctx, cutoff); err != nil {
		r.logger.Error("telemetry rollup", "err", err)
		return
	}
	r.logger.Debug("telemetry rollup complete", "cutoff", cutoff)
}

func (r *Recorder) ctxOrBackground() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

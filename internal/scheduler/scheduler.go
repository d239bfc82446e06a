// Package scheduler runs the periodic jobs of both binaries: the server's
// monthly matrix export and the agent's reconciliation passes.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/service/reconcile"
)

const (
	exportTimeout = 2 * time.Minute
	syncTimeout   = 5 * time.Minute
	countTimeout  = 10 * time.Second
)

// MatrixExporter writes one farm-year matrix to the report spreadsheet.
type MatrixExporter interface {
	ExportMonthlyMatrix(ctx context.Context, farmID string, year int) error
}

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context) (reconcile.Result, error)
}

// Connectivity reports whether the farm API is reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// PendingCounter reports the size of the local capture queue.
type PendingCounter interface {
	Count(ctx context.Context) (int, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron   *cron.Cron
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler evaluating cron specs in loc.
func NewScheduler(loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		loc:    loc,
		logger: logger.Named("scheduler"),
		now:    time.Now,
	}
}

// AddMatrixExport exports the current year's matrix of every farm on spec.
func (s *Scheduler) AddMatrixExport(spec string, exporter MatrixExporter, farmIDs []string) error {
	_, err := s.cron.AddFunc(spec, s.matrixExportJob(exporter, farmIDs))
	return err
}

// AddSync runs a reconciliation pass on spec whenever the API is reachable.
func (s *Scheduler) AddSync(spec string, conn Connectivity, reconciler Reconciler) error {
	_, err := s.cron.AddFunc(spec, s.syncJob(conn, reconciler))
	return err
}

// AddPendingRefresh reads the queue size on spec and hands it to report,
// whether or not the API is reachable.
func (s *Scheduler) AddPendingRefresh(spec string, counter PendingCounter, report func(count int)) error {
	_, err := s.cron.AddFunc(spec, s.pendingRefreshJob(counter, report))
	return err
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) matrixExportJob(exporter MatrixExporter, farmIDs []string) func() {
	return func() {
		year := s.now().In(s.loc).Year()
		for _, farmID := range farmIDs {
			ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
			err := exporter.ExportMonthlyMatrix(ctx, farmID, year)
			cancel()

			if err != nil {
				s.logger.Error("monthly matrix export failed",
					zap.String("farm_id", farmID), zap.Int("year", year), zap.Error(err))
				continue
			}
			s.logger.Info("monthly matrix export completed", zap.String("farm_id", farmID), zap.Int("year", year))
		}
	}
}

func (s *Scheduler) syncJob(conn Connectivity, reconciler Reconciler) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		if !conn.Online(ctx) {
			s.logger.Debug("offline, sync skipped")
			return
		}

		res, err := reconciler.Run(ctx)
		if err != nil {
			s.logger.Error("sync pass aborted", zap.Error(err))
			return
		}
		if res.Skipped {
			s.logger.Debug("sync pass already running")
			return
		}
		s.logger.Info("sync pass completed", zap.Int("synced", res.Synced), zap.Int("failed", res.Failed))
	}
}

func (s *Scheduler) pendingRefreshJob(counter PendingCounter, report func(int)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
		defer cancel()

		n, err := counter.Count(ctx)
		if err != nil {
			s.logger.Warn("counting pending weights", zap.Error(err))
			return
		}
		report(n)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/analytics"
	"github.com/pastvra/pastvra/internal/config"
	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/repository/localstore"
	"github.com/pastvra/pastvra/internal/scheduler"
	"github.com/pastvra/pastvra/internal/service/capture"
	"github.com/pastvra/pastvra/internal/service/reconcile"
)

var errOffline = errors.New("farm api unreachable, try again when online")

type app struct {
	cfg        *config.AgentConfig
	conn       capture.Connectivity
	local      localstore.Store
	capture    *capture.Service
	reconciler *reconcile.Reconciler
	out        io.Writer
	logger     *zap.Logger
	now        func() time.Time
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "lookup":
		return a.lookup(ctx, args)
	case "capture":
		return a.captureWeight(ctx, args)
	case "sync":
		return a.sync(ctx)
	case "pending":
		return a.pending(ctx)
	case "daemon":
		return a.daemon(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) lookup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	term := fs.String("term", "", "chip id or ear tag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *term == "" {
		return errors.New("-term is required")
	}

	res, err := a.capture.Lookup(ctx, a.cfg.FarmID, *term)
	if err != nil {
		return err
	}

	card := res.Animal
	fmt.Fprintf(a.out, "%s (id %s)\n", card.DisplayName, card.AnimalID)
	if card.ChipID != "" {
		fmt.Fprintf(a.out, "  chip:    %s\n", card.ChipID)
	}
	if card.EarTag != "" {
		fmt.Fprintf(a.out, "  ear tag: %s\n", card.EarTag)
	}
	if !res.Online {
		fmt.Fprintln(a.out, "  offline: showing cached data")
	}
	for _, p := range res.History {
		fmt.Fprintf(a.out, "  %s  %.1f kg\n", p.MeasuredOn.Format(models.DateLayout), p.WeightKg)
	}
	return nil
}

func (a *app) captureWeight(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	term := fs.String("term", "", "chip id or ear tag, resolves the animal and its last weight")
	animalID := fs.String("animal", "", "animal id, used when -term is not given")
	weight := fs.Float64("weight", 0, "weight in kg")
	date := fs.String("date", "", "measurement date, YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := capture.Input{FarmID: a.cfg.FarmID, AnimalID: *animalID, WeightKg: *weight}

	in.MeasuredOn = a.today()
	if *date != "" {
		parsed, err := models.ParseDate(*date)
		if err != nil {
			return fmt.Errorf("-date: %w", err)
		}
		in.MeasuredOn = parsed
	}

	var (
		res *capture.Result
		err error
	)
	if *term != "" {
		found, lookupErr := a.capture.Lookup(ctx, a.cfg.FarmID, *term)
		if lookupErr != nil {
			return lookupErr
		}
		in.AnimalID = found.Animal.AnimalID
		in.Previous = previousPoint(found.History, in.MeasuredOn)
		res, err = a.capture.CaptureWith(ctx, in, found.Online)
	} else {
		res, err = a.capture.Capture(ctx, in)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s %.1f kg for %s on %s\n", res.Outcome.Kind, in.WeightKg, in.AnimalID, in.MeasuredOn.Format(models.DateLayout))
	if res.ADG != nil {
		fmt.Fprintf(a.out, "  adg:  %.3f kg/day\n", *res.ADG)
	}
	if tags := res.Tags.Sorted(); len(tags) > 0 {
		names := make([]string, 0, len(tags))
		for _, t := range tags {
			names = append(names, string(t))
		}
		fmt.Fprintf(a.out, "  tags: %s\n", strings.Join(names, ", "))
	}
	return nil
}

// previousPoint picks the newest point of a newest-first history measured on
// or before the capture date.
func previousPoint(history []models.WeightPoint, measuredOn time.Time) *models.WeightPoint {
	for i := range history {
		if analytics.DaysBetween(history[i].MeasuredOn, measuredOn) >= 0 {
			p := history[i]
			return &p
		}
	}
	return nil
}

func (a *app) sync(ctx context.Context) error {
	if !a.conn.Online(ctx) {
		return errOffline
	}
	res, err := a.reconciler.Run(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Fprintln(a.out, "sync already running")
		return nil
	}
	fmt.Fprintf(a.out, "synced %d, failed %d\n", res.Synced, res.Failed)
	return nil
}

func (a *app) pending(ctx context.Context) error {
	n, err := a.local.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, n)
	return nil
}

// pendingBadge prints the queue size whenever it differs from the last one
// shown.
type pendingBadge struct {
	mu   sync.Mutex
	out  io.Writer
	last int
}

func (b *pendingBadge) show(count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if count == b.last {
		return
	}
	b.last = count
	fmt.Fprintf(b.out, "pending: %d\n", count)
}

func (a *app) daemon(ctx context.Context) error {
	n, err := a.local.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, n)
	badge := &pendingBadge{out: a.out, last: n}

	// Subscribe only sees changes made through this process; the refresh job
	// picks up captures queued by separate agent invocations.
	cancel := a.local.Subscribe(badge.show)
	defer cancel()

	sched := scheduler.NewScheduler(time.Local, a.logger)
	if err := sched.AddSync(a.cfg.SyncSchedule, a.conn, a.reconciler); err != nil {
		return fmt.Errorf("AGENT_SYNC_SCHEDULE: %w", err)
	}
	if err := sched.AddPendingRefresh(a.cfg.SyncSchedule, a.local, badge.show); err != nil {
		return fmt.Errorf("AGENT_SYNC_SCHEDULE: %w", err)
	}

	sched.Start()
	<-ctx.Done()
	sched.Stop()
	return nil
}

func (a *app) today() time.Time {
	now := time.Now
	if a.now != nil {
		now = a.now
	}
	return models.DateOnly(now())
}

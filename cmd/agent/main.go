// Command agent is the field-device side of pastvra: it looks animals up,
// captures weights online or into a local queue, and drains that queue to
// the farm API.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/config"
	"github.com/pastvra/pastvra/internal/repository/localstore"
	"github.com/pastvra/pastvra/internal/service/capture"
	"github.com/pastvra/pastvra/internal/service/reconcile"
	"github.com/pastvra/pastvra/pkg/clients/farmapi"
	"github.com/pastvra/pastvra/pkg/logger"
)

const usage = `usage: agent [-env file] <command> [flags]

commands:
  lookup   -term <chip|tag>                      show an animal and its history
  capture  -term <chip|tag> | -animal <id> -weight <kg> [-date YYYY-MM-DD]
  sync                                           push queued weights now
  pending                                        print the queued weight count
  daemon                                         sync on AGENT_SYNC_SCHEDULE until interrupted
`

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("agent", flag.ContinueOnError)
	global.SetOutput(stderr)
	envFile := global.String("env", "", "optional .env file")
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.LoadAgent(*envFile)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	baseLogger, err := logger.NewConsole(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	defer func() { _ = baseLogger.Sync() }()

	local, err := localstore.OpenSQLite(cfg.LocalDBPath, baseLogger)
	if err != nil {
		baseLogger.Error("failed to open local store", zap.String("path", cfg.LocalDBPath), zap.Error(err))
		return 1
	}
	defer func() {
		if err := local.Close(); err != nil {
			baseLogger.Error("failed to close local store", zap.Error(err))
		}
	}()

	client := farmapi.NewClient(*cfg)
	a := &app{
		cfg:   cfg,
		conn:  client,
		local: local,
		capture: capture.NewService(client, client, local, cfg.UserID, capture.Thresholds{
			LowGainADG:  cfg.Farm.LowGainThresholdADG,
			OverdueDays: cfg.Farm.OverdueDays,
		}, baseLogger),
		reconciler: reconcile.NewReconciler(local, client, cfg.UserID, baseLogger),
		out:        stdout,
		logger:     baseLogger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.dispatch(ctx, global.Arg(0), global.Args()[1:]); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", global.Arg(0), err)
		return 1
	}
	return 0
}

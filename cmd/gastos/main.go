package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"gastos/internal/backend"
	"gastos/internal/cli"
	"gastos/internal/config"
	"gastos/internal/ledger"
	applog "gastos/internal/log"
)

var (
	version = "dev"
	commit  = "none"
)

const (
	shutdownTimeout = 10 * time.Second
	// publishTimeout bounds each movement event so a slow broker cannot
	// stall the menu.
	publishTimeout  = 2 * time.Second
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "gastos",
		Short:   "Personal finance ledger",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenu(cmd)
		},
	}

	rootCmd.AddCommand(
		newImportCommand(),
		newBackupCommand(),
		newRestoreCommand(),
		newResetCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

// app is an opened ledger plus the backend it writes through.
type app struct {
	cfg    *config.Config
	logger *applog.Logger
	ledger *ledger.Ledger

	closeOnce sync.Once
	cleanup   backend.CleanupFunc
}

func openApp(ctx context.Context) (*app, error) {
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cli.LoadEnvFile(logger)

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger = cli.SetupLogger(cfg.LogLevel)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	opts := []ledger.Option{ledger.WithLogger(logger)}
	if res.Notifier != nil {
		opts = append(opts, ledger.WithNotifier(res.Notifier), ledger.WithNotifyTimeout(publishTimeout))
	}
	l, err := ledger.Open(ctx, res.Gateway, opts...)
	if err != nil {
		if res.Cleanup != nil {
			_ = res.Cleanup()
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	logger.Info("Ledger opened", applog.FieldBackend, bcfg.Type.String())
	return &app{cfg: cfg, logger: logger, ledger: l, cleanup: res.Cleanup}, nil
}

// close waits for the in-flight operation, refuses further writes and
// releases the backend. Safe to call more than once.
func (a *app) close() {
	a.closeOnce.Do(func() {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("Ledger close failed", applog.FieldError, err)
		}
		if a.cleanup != nil {
			if err := a.cleanup(); err != nil {
				a.logger.Warn("Backend cleanup failed", applog.FieldError, err)
			}
		}
	})
}

func runMenu(cmd *cobra.Command) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	// A signal lets the current operation finish, then exits cleanly even
	// while the menu is blocked reading input.
	ctx, done := cli.GracefulShutdown(a.logger, shutdownTimeout, a.close)
	go func() {
		<-done
		os.Exit(0)
	}()

	menu := cli.NewMenu(a.ledger, cmd.InOrStdin(), cmd.OutOrStdout(), cli.WithMenuLogger(a.logger))
	return menu.Run(ctx)
}

func withLedger(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

var errNotConfirmed = errors.New("refusing to replace existing data without --yes")

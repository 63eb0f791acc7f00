package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/shoetrack/internal/client/api"
	"github.com/iudanet/shoetrack/internal/client/auth"
	"github.com/iudanet/shoetrack/internal/client/cli"
	"github.com/iudanet/shoetrack/internal/client/conflict"
	"github.com/iudanet/shoetrack/internal/client/connectivity"
	"github.com/iudanet/shoetrack/internal/client/dashboard"
	"github.com/iudanet/shoetrack/internal/client/data"
	"github.com/iudanet/shoetrack/internal/client/iocli"
	"github.com/iudanet/shoetrack/internal/client/queue"
	"github.com/iudanet/shoetrack/internal/client/storage/boltdb"
	"github.com/iudanet/shoetrack/internal/client/store"
	"github.com/iudanet/shoetrack/internal/client/sync"
	"github.com/iudanet/shoetrack/internal/config"
	"github.com/iudanet/shoetrack/internal/logging"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newApp().Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var configFile string

	app := cli.New(func(cmd *cobra.Command) (*cli.Cli, io.Closer, error) {
		cfg, err := config.LoadClient(configFile, cmd.Flags())
		if err != nil {
			return nil, nil, err
		}
		return build(cmd.Context(), cfg)
	})

	root := app.Command()
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to YAML config file")
	config.RegisterClientFlags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// зависимости версии не нужны
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Shoetrack Client\n")
			fmt.Fprintf(out, "Version:    %s\n", Version)
			fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		},
	})
	return app
}

// closers закрывает ресурсы в обратном порядке
type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i].Close())
	}
	return errors.Join(errs...)
}

// build собирает клиент: хранилище, очередь, кэш, сеть и движок синхронизации
func build(ctx context.Context, cfg *config.Client) (*cli.Cli, io.Closer, error) {
	logger, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	cleanup := closers{logCloser}

	st, err := boltdb.New(ctx, cfg.DBPath, boltdb.WithMaxBytes(cfg.MaxBytes))
	if err != nil {
		_ = cleanup.Close()
		return nil, nil, fmt.Errorf("failed to open local database %s: %w", cfg.DBPath, err)
	}
	cleanup = append(cleanup, st)

	q := queue.New(st, logger, cfg.Policy)
	local := store.New(st, q, logger)
	conflicts := conflict.NewRegistry(st, q, local, logger)

	// клиент без токена нужен для регистрации и входа
	baseClient := api.NewClient(cfg.ServerURL)
	authService := auth.NewService(baseClient, st, logger)

	monitor := connectivity.NewMonitor(baseClient, logger, cfg.Connectivity)
	remote := connectivity.Track(baseClient.WithTokenSource(authService), monitor)

	engine := sync.NewService(sync.Deps{
		Remote:    remote,
		Queue:     q,
		Store:     local,
		Conflicts: conflicts,
		ErrorLog:  st,
		Metadata:  st,
	}, cfg.Sync, logger)

	dataService := data.NewService(local, logger)

	logger.Debug("Client initialized", "version", Version, "server", cfg.ServerURL, "db", cfg.DBPath)

	return &cli.Cli{
		IO:        iocli.NewStdio(),
		Auth:      authService,
		Data:      dataService,
		Sync:      engine,
		Conflicts: conflicts,
		Dashboard: dashboard.NewBuilder(dataService),
		Stats:     local,
		Usage:     st,
		Monitor:   monitor,
	}, cleanup, nil
}

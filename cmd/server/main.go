package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/shoetrack/internal/config"
	"github.com/iudanet/shoetrack/internal/crypto"
	"github.com/iudanet/shoetrack/internal/logging"
	"github.com/iudanet/shoetrack/internal/server/app"
	"github.com/iudanet/shoetrack/internal/server/jwt"
	"github.com/iudanet/shoetrack/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "shoetrack-server",
		Short:         "Shoetrack server of record",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to YAML config file")
	config.RegisterServerFlags(cmd.Flags())

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd)
		},
	})

	return cmd
}

func run(ctx context.Context, cfg *config.Server) error {
	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = closer.Close()
	}()
	slog.SetDefault(logger)

	secret := cfg.JWTSecret
	if secret == "" {
		// токены не переживут рестарт, клиентам придётся войти заново
		if secret, err = crypto.GenerateSecret(); err != nil {
			return err
		}
		logger.Warn("jwt.secret is not configured, using a random secret")
	}

	st, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	srv := app.New(logger, st, jwt.NewService(secret, cfg.JWTTTL), app.Options{
		Addr:            cfg.Addr,
		ShutdownTimeout: cfg.ShutdownTimeout,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
	})

	logger.Info("starting server", "version", Version, "addr", cfg.Addr, "db", cfg.DBPath)
	return srv.Run(ctx)
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Shoetrack Server\n")
	fmt.Fprintf(out, "Version:    %s\n", Version)
	fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
	fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
}

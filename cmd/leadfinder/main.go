package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/freelance-lead-finder/internal/app"
	"github.com/JakeFAU/freelance-lead-finder/internal/config"
	"github.com/JakeFAU/freelance-lead-finder/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "leadfinder: %v\n", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop already ran
	}
}

type appKey struct{}

// needsApp marks commands that run against the built application. Cobra's
// help and completion commands never carry it.
const needsApp = "leadfinder/needs-app"

func newRootCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:           "leadfinder",
		Short:         "Finds freelance web-development leads on Reddit.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := cmd.Annotations[needsApp]; !ok {
				return nil
			}
			a, err := buildApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	cmd.AddCommand(newServeCmd(), newScanCmd())
	return cmd
}

func buildApp(ctx context.Context, cfgPath string) (*app.App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	return a, nil
}

func appFrom(cmd *cobra.Command) (*app.App, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app.App)
	if !ok || a == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return a, nil
}

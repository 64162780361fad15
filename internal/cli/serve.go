package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wdrdev/sitebridge/internal/config"
	"github.com/wdrdev/sitebridge/internal/logger"
	"github.com/wdrdev/sitebridge/internal/metrics"
	"github.com/wdrdev/sitebridge/pkg/bridge"
	"github.com/wdrdev/sitebridge/pkg/registry"
	"github.com/wdrdev/sitebridge/pkg/sandbox"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tool bridge on stdio",
	Long: `Loads the tool definitions, binds to the configured project and answers
tools/list and tools/call requests on stdin/stdout until EOF.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	l, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
	})
	if err != nil {
		return err
	}
	defer l.Close()

	log.Info().Str("project", cfg.Project).Msg("Starting sitebridge")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := registry.New(cfg, sandbox.NewDockerExecutor(cfg.Project))
	count, err := reg.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tool registry: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("no tools loaded from %s; refusing to serve an empty catalog", cfg.ToolsDir)
	}

	if cfg.Metrics.Enabled {
		m := metrics.NewMetrics()
		m.ToolsRegistered.Set(float64(count))
		reg.SetRecorder(m)
		go func() {
			if err := m.Serve(cfg.Metrics.Addr); err != nil {
				log.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Metrics endpoint failed")
			}
		}()
	}

	log.Info().Int("tools", count).Msg("Bridge initialized")

	if err := bridge.New(reg).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wdrdev/sitebridge/internal/config"
	"github.com/wdrdev/sitebridge/internal/logger"
	"github.com/wdrdev/sitebridge/pkg/registry"
	"github.com/wdrdev/sitebridge/pkg/sandbox"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the bridge would serve",
	Long:  `Loads the tool definitions (including remote discovery) and prints the resulting catalog without serving.`,
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
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

	reg := registry.New(cfg, sandbox.NewDockerExecutor(cfg.Project))
	count, err := reg.Load(cmd.Context())
	if err != nil {
		return err
	}

	descriptors := reg.List()
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d tools loaded (project: %s)\n", count, cfg.Project)
	for _, d := range descriptors {
		fmt.Fprintf(out, "  %-30s %s\n", d.Name, d.Description)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"

	tui "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/keilerkonzept/sshdash/internal/config"
	"github.com/keilerkonzept/sshdash/internal/logging"
)

var (
	configFile string
	noColor    bool
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "sshdash",
		Short: "Explore SSH brute-force attack data in the terminal",
		Long: `sshdash reads daily attack counts from the dashboard API and shows them
as linked charts: selecting an entity or a date range filters every other chart.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context(), v)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file path (default ./sshdash.yaml if present)")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.String("api", "", "API base URL, e.g. http://localhost:5000/api")
	pf.String("start", "", "Initial range start (YYYY-MM-DD)")
	pf.String("end", "", "Initial range end (YYYY-MM-DD)")
	pf.String("redis", "", "Share the response cache through this Redis host:port")
	pf.String("log-file", "", "Append logs to this file")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")

	f := root.Flags()
	f.Bool("log-scale", false, "Use a logarithmic Y axis scale (default: linear)")
	f.Int("view-split", 0, "Split the view at this % of the total screen width [20,80]")
	f.Bool("alt-screen", true, "Use the terminal alternate screen buffer")
	f.Bool("stats", true, "Show request and reload stats")
	f.Int("top-n", 0, "Series per chart")

	bindFlags(v, pf, map[string]string{
		"api.base_url":     "api",
		"range.start":      "start",
		"range.end":        "end",
		"cache.redis_addr": "redis",
		"log.file":         "log-file",
		"log.level":        "log-level",
	})
	bindFlags(v, f, map[string]string{
		"ui.log_scale":  "log-scale",
		"ui.view_split": "view-split",
		"ui.alt_screen": "alt-screen",
		"ui.stats":      "stats",
		"ui.top_n":      "top-n",
	})

	root.AddCommand(newDiscoverCmd(v))
	root.AddCommand(newSeriesCmd(v))
	return root
}

// bindFlags lets an explicitly set flag override the config file and the
// environment. Unset flags never shadow them.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if fl := fs.Lookup(name); fl != nil {
			_ = v.BindPFlag(key, fl)
		}
	}
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func runDashboard(ctx context.Context, v *viper.Viper) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !term.IsTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("the dashboard needs a terminal; use the discover or series commands instead")
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	log, closeLog, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	coord := a.coordinator(ctx)
	log.Info("dashboard starting",
		zap.String("api", cfg.API.BaseURL),
		zap.Stringer("range", coord.Snapshot().Range))

	m := newModel(ctx, a, coord)
	opts := []tui.ProgramOption{tui.WithContext(ctx)}
	if cfg.UI.AltScreen {
		opts = append(opts, tui.WithAltScreen())
	}
	if _, err := tui.NewProgram(m, opts...).Run(); err != nil {
		return err
	}
	return nil
}

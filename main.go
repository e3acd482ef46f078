package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"evtimesel/internal/config"
)

const appVersion = "0.1.0"

// rootFlags are the persistent flags shared by all subcommands.
type rootFlags struct {
	configPath    string
	eventURL      string
	dataselectURL string
	delay         time.Duration
	logLevel      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "evtimesel",
		Short:         "Event-based time selection for FDSNWS dataselect (CLI, REPL or web)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ok, _ := cmd.Flags().GetBool("version"); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "evtimesel v%s\n", appVersion)
				return nil
			}
			return cmd.Help()
		},
	}

	cmd.Version = appVersion
	cmd.SetVersionTemplate("evtimesel v{{.Version}}\n")
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&flags.eventURL, "event-url", "", "fdsnws-event base URL (e.g. http://localhost:8080/fdsnws/event/1)")
	pf.StringVar(&flags.dataselectURL, "dataselect-url", "", "fdsnws-dataselect base URL used for the URL preview")
	pf.DurationVar(&flags.delay, "delay", 0, "Debounce quiet window for identifier input (default 800ms)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(
		newLookupCmd(&flags),
		newServeCmd(&flags),
		newInteractiveCmd(&flags),
	)
	return cmd
}

// loadConfig merges the config file and environment with flags the user set explicitly.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("event-url") {
		cfg.EventURL = flags.eventURL
	}
	if changed("dataselect-url") {
		cfg.DataselectURL = flags.dataselectURL
	}
	if changed("delay") {
		cfg.Debounce = flags.delay
	}
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

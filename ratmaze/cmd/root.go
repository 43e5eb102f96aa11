// Package cmd provides the command-line interface of ratmaze.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/ratmaze/config"
	"github.com/sarchlab/ratmaze/logging"
	"github.com/sarchlab/ratmaze/monitoring"
	"github.com/sarchlab/ratmaze/report"
	"github.com/sarchlab/ratmaze/simulation"
	"github.com/sarchlab/ratmaze/station"
)

var errUsage = errors.New(
	"usage: ratmaze <number of rats> <traversing algorithm>")

// NewRootCommand creates the ratmaze command. The report goes to stdout and
// the logs go to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratmaze <number of rats> <i|d|n>",
		Short: "Run rats through a maze of capacity-limited rooms.",
		Long: `Ratmaze releases a number of rats into a maze of rooms. Each room ` +
			`holds a limited number of rats for a fixed delay. The algorithm ` +
			`decides where every rat enters and how it waits for a full room: ` +
			`i (ordered) and d (distributed) block, n (non-blocking) polls.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 2 {
				return errUsage
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, summary, err := resolveConfig(cmd, args)
			if err != nil {
				return err
			}

			return run(cfg, summary, stdout, stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.String("rooms", config.DefaultRoomsFile,
		"file with one room per line: <capacity> <delay>")
	flags.Int("max-agents", config.DefaultMaxAgents,
		"largest number of rats accepted")
	flags.Int("max-rooms", config.DefaultMaxStations,
		"largest number of rooms read from the rooms file")
	flags.Duration("time-unit", config.DefaultTimeUnit,
		"wall duration of one delay unit")
	flags.String("log-level", config.DefaultLogLevel,
		"log level: info, debug, or trace")
	flags.Bool("summary", false,
		"print per-room wait and occupancy statistics after the report")
	flags.Bool("monitor", false,
		"serve a live monitoring page while the simulation runs")
	flags.Int("monitor-port", config.DefaultMonitorPort,
		"port of the monitoring server, 0 picks a free one")
	flags.Bool("open-browser", false,
		"open the monitoring page in a browser")

	return cmd
}

// resolveConfig layers the defaults, the .env file, the environment, and
// the flags, in increasing priority.
func resolveConfig(
	cmd *cobra.Command,
	args []string,
) (config.Config, bool, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, false, err
	}

	cfg, err := config.Default().ApplyEnv()
	if err != nil {
		return cfg, false, err
	}

	flags := cmd.Flags()

	if flags.Changed("rooms") {
		cfg.RoomsFile, _ = flags.GetString("rooms")
	}

	if flags.Changed("max-agents") {
		cfg.MaxAgents, _ = flags.GetInt("max-agents")
	}

	if flags.Changed("max-rooms") {
		cfg.MaxStations, _ = flags.GetInt("max-rooms")
	}

	if flags.Changed("time-unit") {
		cfg.TimeUnit, _ = flags.GetDuration("time-unit")
	}

	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	cfg.MonitorOn, _ = flags.GetBool("monitor")
	cfg.MonitorPort, _ = flags.GetInt("monitor-port")
	cfg.OpenBrowser, _ = flags.GetBool("open-browser")
	summary, _ := flags.GetBool("summary")

	cfg.Agents, err = config.ParseAgentCount(args[0])
	if err != nil {
		return cfg, false, err
	}

	cfg.Policy, err = config.ParsePolicy(args[1])
	if err != nil {
		return cfg, false, err
	}

	return cfg, summary, cfg.Validate()
}

func run(cfg config.Config, summary bool, stdout, stderr io.Writer) error {
	logger := logging.NewLogger(cfg.LogLevel, stderr)

	registry, err := station.LoadFile(cfg.RoomsFile, cfg.MaxStations)
	if err != nil {
		return err
	}

	logger.Debug("rooms loaded",
		"file", cfg.RoomsFile, "rooms", registry.Len())

	b := simulation.MakeBuilder().
		WithRegistry(registry).
		WithAgents(cfg.Agents).
		WithPolicy(cfg.Policy).
		WithMaxAgents(cfg.MaxAgents).
		WithTimeUnit(cfg.TimeUnit).
		WithLogger(logger).
		WithHook(report.NewCompletionPrinter(stdout, cfg.TimeUnit))

	if summary || cfg.MonitorOn {
		b = b.WithRecorder()
	}

	var monitor *monitoring.Monitor
	if cfg.MonitorOn {
		monitor = monitoring.NewMonitor().
			WithStderr(stderr).
			WithPortNumber(cfg.MonitorPort).
			WithBrowser(cfg.OpenBrowser)
		b = b.WithMonitor(monitor)
	}

	sim, err := b.Build()
	if err != nil {
		return err
	}
	defer sim.Close()

	if monitor != nil {
		if _, err := monitor.StartServer(); err != nil {
			return err
		}

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			if err := monitor.StopServer(ctx); err != nil {
				logger.Warn("monitor did not stop cleanly", "err", err)
			}
		}()
	}

	result, err := sim.Run()
	if err != nil {
		return err
	}

	if err := report.Write(stdout, result); err != nil {
		return err
	}

	if summary {
		return report.WriteSummary(stdout, result)
	}

	return nil
}

// Execute runs the root command with the process arguments and exits. The
// exit status is 1 on any error.
func Execute() {
	err := NewRootCommand(os.Stdout, os.Stderr).Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func describe(err error) string {
	var configErr *config.ConfigError
	if errors.As(err, &configErr) {
		return "Configuration error: " + err.Error()
	}

	var initErr *config.ResourceInitError
	if errors.As(err, &initErr) {
		return "Initialization error: " + err.Error()
	}

	if errors.Is(err, errUsage) {
		return "Usage: ratmaze <number of rats> <traversing algorithm>"
	}

	return "Error: " + err.Error()
}

package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/wesleywu/lucky-route/internal/config"
	"github.com/wesleywu/lucky-route/internal/logger"
	"github.com/wesleywu/lucky-route/internal/routing/metrics"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

var (
	version = "1.0.0"

	configFile  string
	silentMode  bool
	verboseMode bool
	concurrency int
	groupSize   int
	backend     string
	metricsFile string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", userMessage(err))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "luckyroute",
		Short:         "Split-tunnel route manager",
		Long:          `Computes the routes of a region's address space and keeps them on the physical gateway while a VPN owns the default route.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run:   showVersion,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file path (TOML)")
	flags.BoolVarP(&silentMode, "silent", "q", false, "Silent mode (no output)")
	flags.BoolVarP(&verboseMode, "verbose", "v", false, "Verbose mode (debug level logging)")
	flags.IntVar(&concurrency, "concurrency", 0, "Route groups applied in parallel")
	flags.IntVar(&groupSize, "group-size", 0, "Route operations per command invocation")
	flags.StringVar(&backend, "backend", "", "Route backend: auto, command, script or netlink")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file when done")

	rootCmd.AddCommand(newRouteCommand())
	rootCmd.AddCommand(newRoutesCommand())
	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// settings is the resolved configuration of one command run
type settings struct {
	cfg     *config.Config
	log     *logger.Logger
	out     io.Writer
	errOut  io.Writer
	metrics *metrics.Recorder
}

// loadSettings reads the config file and applies the persistent flags over it
func loadSettings(cmd *cobra.Command) (*settings, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if verboseMode {
		cfg.LogLevel = "debug"
	}
	if flags.Changed("concurrency") {
		cfg.ConcurrencyLimit = concurrency
	}
	if flags.Changed("group-size") {
		cfg.GroupSize = groupSize
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &settings{cfg: cfg, out: cmd.OutOrStdout(), metrics: metrics.NewRecorder()}
	if silentMode {
		s.log = logger.Discard()
		s.out = io.Discard
		s.errOut = io.Discard
	} else {
		s.errOut = cmd.ErrOrStderr()
		s.log = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
	}
	return s, nil
}

func (s *settings) diagnostics() io.Writer {
	return s.errOut
}

// finish writes the metrics file when one is configured
func (s *settings) finish() {
	if s.cfg.MetricsFile == "" {
		return
	}
	if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
		s.log.Warn("Failed to write metrics", "path", s.cfg.MetricsFile, "error", err)
	}
}

// userMessage hides diagnostic detail of route errors
func userMessage(err error) string {
	if re, ok := types.AsRouteError(err); ok {
		return re.UserMessage()
	}
	return err.Error()
}

func showVersion(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Lucky Route v%s\n", version)
	fmt.Fprintf(out, "Runtime: %s\n", runtime.Version())
	fmt.Fprintf(out, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wesleywu/lucky-route/internal/apnic"
	"github.com/wesleywu/lucky-route/internal/config"
	"github.com/wesleywu/lucky-route/internal/generate"
	"github.com/wesleywu/lucky-route/internal/routing/cidr"
)

var (
	routesOutput  string
	minBlockSize  uint64
	genMetric     int
	genPhonebook  string
	genUsername   string
	genPassword   string
	genDNSServers []string
	genOutputDir  string
)

// fetchRanges downloads the configured region's ranges; tests replace it
var fetchRanges = func(ctx context.Context, cfg *config.Config) ([]cidr.AddressRange, error) {
	records, err := apnic.NewClient(cfg.FeedURL, cfg.FetchTimeoutDuration()).Fetch(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	return apnic.Ranges(records)
}

func newRoutesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Fetch the region's ranges and write the routes file",
		Args:  cobra.NoArgs,
		RunE:  runRoutes,
	}
	cmd.Flags().StringVarP(&routesOutput, "output", "o", generate.RoutesFile, "Routes file to write")
	cmd.Flags().Uint64VarP(&minBlockSize, "min-size", "s", 0, "Filter route rules by minimum size (default from config)")
	return cmd
}

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <entry>",
		Short: "Generate the routes file and dial-up BAT files",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}
	flags := cmd.Flags()
	flags.IntVarP(&genMetric, "metric", "m", 0, "Routing metric (default from config, 5)")
	flags.Uint64VarP(&minBlockSize, "min-size", "s", 0, "Filter route rules by minimum size (default from config)")
	flags.StringVarP(&genPhonebook, "phonebook", "b", "", "Phonebook file")
	flags.StringVarP(&genUsername, "username", "u", "", "VPN username")
	flags.StringVarP(&genPassword, "password", "p", "", "VPN password")
	flags.StringSliceVarP(&genDNSServers, "dns", "d", nil, "Override VPN DNS with given servers (comma separated)")
	flags.StringVarP(&genOutputDir, "output", "o", ".", "Output directory")
	return cmd
}

func runRoutes(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	minSize := s.cfg.MinBlockSize
	if cmd.Flags().Changed("min-size") {
		minSize = minBlockSize
	}

	ctx := commandContext(cmd)
	fmt.Fprintln(s.out, "Fetching new routes data from APNIC...")
	ranges, err := fetchRanges(ctx, s.cfg)
	if err != nil {
		return err
	}

	result, err := cidr.Compute(ranges, minSize)
	if err != nil {
		return err
	}
	s.log.CoverageComputed(len(result.Blocks), result.Covered, result.Total, result.Coverage())

	if err := config.WriteRoutes(routesOutput, result.Blocks); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Wrote %d route rules to %s (coverage: %.2f%%)\n", len(result.Blocks), routesOutput, result.Coverage()*100)
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	metric := s.cfg.RouteMetric
	if flags.Changed("metric") {
		metric = genMetric
	}
	minSize := s.cfg.MinBlockSize
	if flags.Changed("min-size") {
		minSize = minBlockSize
	}

	phonebook := genPhonebook
	if phonebook != "" {
		abs, err := filepath.Abs(phonebook)
		if err != nil {
			return fmt.Errorf("invalid phonebook path %q: %w", phonebook, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return fmt.Errorf("phonebook file %q not found", phonebook)
		}
		phonebook = abs
	}

	dns, err := config.ParseDNSServers(genDNSServers)
	if err != nil {
		return err
	}

	opts := generate.Options{
		Entry:      args[0],
		Username:   genUsername,
		Password:   genPassword,
		Phonebook:  phonebook,
		Metric:     metric,
		MinSize:    minSize,
		DNSServers: dns,
		OutputDir:  genOutputDir,
	}

	source := func(ctx context.Context) ([]cidr.AddressRange, error) {
		return fetchRanges(ctx, s.cfg)
	}

	written, err := generate.Generate(commandContext(cmd), opts, source, func(state generate.State, count int, coverage float64) {
		switch state {
		case generate.StateFetching:
			fmt.Fprintln(s.out, "Fetching new routes data from APNIC...")
		case generate.StateGenerating:
			fmt.Fprintf(s.out, "Generating %d route rules in total after filtering (coverage: %.2f%%)...\n", count, coverage*100)
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, "Generated:")
	for _, path := range written {
		fmt.Fprintf(s.out, "  %s\n", path)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

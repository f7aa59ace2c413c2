package main

import (
	"flag"
	"fmt"
	"os"

	"CapMatrix/internal/config"
	"CapMatrix/internal/engine/manager"
	"CapMatrix/internal/filter"
	"CapMatrix/internal/offload"
	"CapMatrix/pkg/logutil"
	"CapMatrix/pkg/pcap"

	"go.uber.org/zap"
)

func main() {
	filterExpr := flag.String("Y", "", "Display filter expression (libpcap syntax)")
	countOnly := flag.Bool("c", false, "Print counts only, without the traffic matrix")
	configPath := flag.String("config", "", "Path to config file (defaults are used when empty)")
	workers := flag.Int("workers", 0, "Number of aggregation workers (overrides config)")
	device := flag.String("device", "", fmt.Sprintf("Filter device %v (overrides config)", offload.Devices()))
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file.pcap>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *configPath, *filterExpr, *workers, *device, *countOnly); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(path, configPath, filterExpr string, workers int, device string, countOnly bool) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if filterExpr != "" {
		cfg.Pipeline.Filter = filterExpr
	}
	if workers > 0 {
		cfg.Pipeline.NumWorkers = workers
	}
	if device != "" {
		cfg.Device.Type = device
	}

	if err := logutil.InitLogger(cfg.Log.Level, cfg.Log.Development); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	logger := logutil.GetLogger()
	defer logger.Sync()

	m, err := manager.NewManager(cfg, manager.WithCompiler(filter.Compile))
	if err != nil {
		return err
	}
	defer m.Close()

	reader, err := pcap.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()
	logger.Info("Capture mapped", zap.String("path", path), zap.Int("bytes", reader.Len()))

	report, err := m.Run(reader.Bytes())
	if err != nil {
		return err
	}

	fmt.Printf("pcap ver: %d.%d\n", report.Header.VersionMajor, report.Header.VersionMinor)
	fmt.Printf("n_packets = %d\n", report.Packets)
	fmt.Printf("  elapsed = %s\n", report.Timings.Index)
	if report.Filtered {
		fmt.Printf("npassed = %d\n", report.Passed)
		fmt.Printf("  elapsed = %s\n", report.Timings.Offload)
	}
	if report.Skipped > 0 {
		fmt.Printf("nskipped = %d\n", report.Skipped)
	}
	fmt.Printf("flows = %d (workers = %d)\n", report.Matrix.Flows(), report.Workers)
	fmt.Printf("  elapsed = %s\n", report.Timings.Aggregate)

	if !countOnly {
		for _, row := range report.Matrix.Rows() {
			fmt.Printf("%-15s -> %-15s packets=%d bytes=%d\n", row.Src, row.Dst, row.Packets, row.Bytes)
		}
	}

	if p := cfg.Metrics.TextfilePath; p != "" {
		if err := m.Metrics().WriteTextfile(p); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		logger.Debug("Metrics written", zap.String("path", p))
	}
	return nil
}

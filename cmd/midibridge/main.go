// Command midibridge exposes local MIDI ports to WebSocket clients.
//
// Usage:
//
//	midibridge -config midi.yaml
//	midibridge -list
//	midibridge -config midi.yaml -strict -driver native
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/leandrodaf/midibridge/internal/config"
	"github.com/leandrodaf/midibridge/internal/logger"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/leandrodaf/midibridge/sdk/midi"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "midibridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML configuration file")
	strict := flag.Bool("strict", false, "exit when any configured port cannot be opened")
	driverName := flag.String("driver", "", "MIDI driver: rtmidi, native or fake (overrides the config file)")
	list := flag.Bool("list", false, "list MIDI ports and exit")
	flag.Parse()

	if *list {
		return listPorts(os.Stdout, contracts.DriverName(*driverName))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *strict {
		cfg.Strict = true
	}
	if *driverName != "" {
		cfg.Driver = *driverName
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	opts := []contracts.Option{
		contracts.WithLogger(log),
		contracts.WithDriver(contracts.DriverName(cfg.Driver)),
	}
	if cfg.Driver == string(contracts.FakeDriver) {
		opts = append(opts, contracts.WithFakePorts(fakePorts(cfg)...))
	}
	driver, err := midi.NewDriver(opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize MIDI driver: %w", err)
	}
	defer func() { _ = driver.Close() }()

	a, err := newApp(cfg, log, driver, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		_ = a.bridge.Close()
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.run(ctx, ln)
}

// newLogger builds the process logger. Any non-zero traffic verbosity
// lowers the level to debug, where per-message logs are written.
func newLogger(cfg *config.Config) (contracts.Logger, error) {
	var log contracts.Logger
	if cfg.Logging.Format == "json" {
		log = logger.NewZapLogger()
	} else {
		log = logger.NewDevelopmentLogger()
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose() {
		level = contracts.DebugLevel
	}
	log.SetLevel(level)

	if cfg.Logging.File != "" {
		if err := log.SetDestination(contracts.FileLog, cfg.Logging.File); err != nil {
			return nil, err
		}
	}
	return log, nil
}

// fakePorts exposes every configured port name through the in-memory driver.
func fakePorts(cfg *config.Config) []string {
	bc := cfg.Bridge()
	return append(append([]string(nil), bc.Sources...), bc.Sinks...)
}

func listPorts(w io.Writer, name contracts.DriverName) error {
	driver, err := midi.NewDriver(contracts.WithLogger(logger.NewNopLogger()), contracts.WithDriver(name))
	if err != nil {
		return err
	}
	defer func() { _ = driver.Close() }()
	return printPorts(w, driver)
}

func printPorts(w io.Writer, driver contracts.Driver) error {
	ins, err := driver.Inputs()
	if err != nil {
		return err
	}
	outs, err := driver.Outputs()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Inputs:")
	for _, d := range ins {
		fmt.Fprintf(w, "  %s\n", d.Name)
	}
	fmt.Fprintln(w, "Outputs:")
	for _, d := range outs {
		fmt.Fprintf(w, "  %s\n", d.Name)
	}
	return nil
}

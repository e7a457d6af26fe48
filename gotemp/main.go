package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/gotemp/pkg/adc"
	"github.com/itohio/gotemp/pkg/config"
	"github.com/itohio/gotemp/pkg/console"
	"github.com/itohio/gotemp/pkg/logging"
	"github.com/itohio/gotemp/pkg/sampler"
	"github.com/itohio/gotemp/pkg/telemetry"
	"github.com/itohio/gotemp/pkg/thermo"
)

var version = "dev"

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		sourceFlag = flag.String("source", "", "Conversion source override (sim or serial)")
		portFlag   = flag.String("p", "", "Serial port override for the serial source (e.g., COM3 or /dev/ttyACM0)")
		periodFlag = flag.Duration("period", 0, "Report period override (e.g., 250ms)")
		listFlag   = flag.Bool("list", false, "List serial ports and exit")
		saveFlag   = flag.String("save", "", "Write the effective configuration to this file and exit")
	)
	flag.Parse()

	if *listFlag {
		if err := listPorts(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *sourceFlag != "" {
		cfg.Source.Kind = *sourceFlag
	}
	if *portFlag != "" {
		cfg.Source.Port = *portFlag
	}
	if *periodFlag > 0 {
		cfg.Sampler.Period = *periodFlag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if *saveFlag != "" {
		if err := cfg.Save(*saveFlag); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	logger := logging.New(cfg.Log, os.Stderr, version)
	slog.SetDefault(logger)
	logger.Info("starting", "source", cfg.Source.Kind, "console", cfg.Console.Kind)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run failed", "err", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

func listPorts(w io.Writer) error {
	ports, err := adc.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "no serial ports found")
	}
	for _, p := range ports {
		fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Description)
	}
	return nil
}

// run wires the configured source, console and reporters into a sampling
// loop and runs it until ctx is done.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	src, closeSrc, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	con, closeCon, err := openConsole(cfg)
	if err != nil {
		return err
	}
	defer closeCon()

	opts := []sampler.Option{
		sampler.WithSequence(adc.SequenceID(cfg.Sampler.Sequence)),
		sampler.WithPeriod(cfg.Sampler.Period),
		sampler.WithPollBudget(cfg.Sampler.PollBudget),
		sampler.WithConverter(thermo.New(thermo.Arithmetic(cfg.Sampler.Arithmetic))),
		sampler.WithBanner(cfg.Sampler.Banner),
		sampler.WithLogger(logger),
	}

	if cfg.MQTT.Enabled {
		rep, stopRep, err := startTelemetry(ctx, cfg.MQTT, logger)
		if err != nil {
			return err
		}
		defer stopRep()
		opts = append(opts, sampler.WithReporter(rep))
	}

	return sampler.New(src, con, opts...).Run(ctx)
}

func openSource(cfg *config.Config, logger *slog.Logger) (adc.Sequencer, func(), error) {
	switch cfg.Source.Kind {
	case config.SourceSerial:
		dev := adc.NewSerial(cfg.Source.Port, cfg.Source.BaudRate, logger)
		if err := dev.Connect(); err != nil {
			return nil, nil, err
		}
		return dev, func() {
			if err := dev.Close(); err != nil {
				logger.Warn("close source", "err", err)
			}
		}, nil
	default:
		return adc.NewSim(&cfg.Sim), func() {}, nil
	}
}

func openConsole(cfg *config.Config) (console.Console, func(), error) {
	switch cfg.Console.Kind {
	case config.ConsoleSerial:
		c, err := console.OpenSerial(cfg.Console.Port, cfg.Console.BaudRate, cfg.Console.LineEnding)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return console.NewWriter(os.Stdout, cfg.Console.LineEnding), func() {}, nil
	}
}

func startTelemetry(ctx context.Context, cfg config.MQTTConfig, logger *slog.Logger) (*telemetry.Reporter, func(), error) {
	client := telemetry.NewMQTT(cfg, logger)

	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.Connect(cctx); err != nil {
		return nil, nil, err
	}

	rep := telemetry.NewReporter(client, cfg.TopicPrefix, cfg.Station, cfg.QueueSize, logger)
	rctx, stopRep := context.WithCancel(context.Background())
	go rep.Run(rctx)

	return rep, func() {
		stopRep()
		<-rep.Done()
		client.Disconnect()
	}, nil
}

package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/itohio/gotemp/pkg/adc"
	"github.com/itohio/gotemp/pkg/console"
	"github.com/itohio/gotemp/pkg/thermo"
)

const (
	// DefaultSequence is the single-step sequencer used for the sensor.
	DefaultSequence adc.SequenceID = 3
	// DefaultPeriod is the delay between reports.
	DefaultPeriod = 250 * time.Millisecond
)

var (
	// ErrHardwareTimeout is returned when a poll budget is set and the
	// converter does not complete within it.
	ErrHardwareTimeout = errors.New("sampler: conversion did not complete")
	ErrNotInitialized  = errors.New("sampler: not initialized")
)

// State is where the current cycle is.
type State uint8

const (
	StateIdle State = iota
	StateTriggered
	StateWaiting
	StateReady
	StateReported
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTriggered:
		return "triggered"
	case StateWaiting:
		return "waiting"
	case StateReady:
		return "ready"
	case StateReported:
		return "reported"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Reading is the result of one cycle.
type Reading struct {
	Cycle       uint64
	At          time.Time
	Raw         adc.RawSample
	Temperature thermo.Temperature
}

// Reporter receives every reading after it was written to the console.
// Report must not block the loop.
type Reporter interface {
	Report(r Reading)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(r Reading)

func (f ReporterFunc) Report(r Reading) { f(r) }

// Option configures a Loop.
type Option func(*Loop)

// WithSequence selects the sequencer.
func WithSequence(seq adc.SequenceID) Option {
	return func(l *Loop) { l.seq = seq }
}

// WithPeriod sets the delay between reports.
func WithPeriod(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.period = d
		}
	}
}

// WithPollBudget bounds the wait for completion. Zero waits forever.
func WithPollBudget(d time.Duration) Option {
	return func(l *Loop) { l.budget = d }
}

// WithConverter replaces the fixed-point converter.
func WithConverter(c thermo.Converter) Option {
	return func(l *Loop) {
		if c != nil {
			l.convert = c
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Loop) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithReporter adds a reporter.
func WithReporter(r Reporter) Option {
	return func(l *Loop) { l.reporters = append(l.reporters, r) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithBanner prints the setup description after Init.
func WithBanner(on bool) Option {
	return func(l *Loop) { l.banner = on }
}

// Loop samples the temperature sensor, converts and reports the reading,
// and waits one period, forever. A Loop owns its sequencer and console and
// must be driven from a single goroutine.
type Loop struct {
	src       adc.Sequencer
	con       console.Console
	convert   thermo.Converter
	clock     Clock
	logger    *slog.Logger
	reporters []Reporter

	seq    adc.SequenceID
	period time.Duration
	budget time.Duration
	banner bool

	initialized bool
	state       State
	cycle       uint64
}

// New creates a loop over src and con.
func New(src adc.Sequencer, con console.Console, opts ...Option) *Loop {
	l := &Loop{
		src:     src,
		con:     con,
		convert: thermo.Convert,
		clock:   RealClock{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		seq:     DefaultSequence,
		period:  DefaultPeriod,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("seq", l.seq)
	return l
}

// State returns the state of the current cycle.
func (l *Loop) State() State { return l.state }

// Cycles returns the number of completed cycles.
func (l *Loop) Cycles() uint64 { return l.cycle }

// Init configures the sequencer for single processor-triggered samples of the
// temperature sensor. It runs once; later calls do nothing.
func (l *Loop) Init() error {
	if l.initialized {
		return nil
	}

	if err := l.src.EnableADC(); err != nil {
		return fmt.Errorf("enable adc: %w", err)
	}
	if err := l.src.ConfigureSequencer(l.seq, adc.TriggerProcessor, 0); err != nil {
		return fmt.Errorf("configure sequencer: %w", err)
	}
	if err := l.src.ConfigureStep(l.seq, 0, adc.ChannelTempSensor, adc.StepInterrupt|adc.StepEnd); err != nil {
		return fmt.Errorf("configure step: %w", err)
	}
	if err := l.src.EnableSequencer(l.seq); err != nil {
		return fmt.Errorf("enable sequencer: %w", err)
	}
	l.src.ClearStatus(l.seq)

	l.initialized = true
	l.state = StateIdle
	l.logger.Info("sampler initialized", "period", l.period, "poll_budget", l.budget)

	if l.banner {
		for _, line := range l.bannerLines() {
			l.writeLine(line)
		}
	}
	return nil
}

func (l *Loop) bannerLines() []string {
	return []string{
		"ADC ->",
		"  Type: Internal Temperature Sensor",
		"  Samples: One",
		"  Update Rate: " + l.period.String(),
		"  Input Pin: Internal temperature sensor",
		"",
	}
}

// Cycle runs exactly one clear-trigger-wait-read-convert-report sequence.
func (l *Loop) Cycle(ctx context.Context) (Reading, error) {
	if !l.initialized {
		return Reading{}, ErrNotInitialized
	}

	l.state = StateIdle
	l.src.ClearStatus(l.seq)
	l.con.ClearStatus()

	if err := l.src.Trigger(l.seq); err != nil {
		return Reading{}, fmt.Errorf("trigger: %w", err)
	}
	l.state = StateTriggered

	if err := l.wait(ctx); err != nil {
		return Reading{}, err
	}
	l.state = StateReady

	l.src.ClearStatus(l.seq)
	raw, err := l.src.ReadResult(l.seq)
	if err != nil {
		return Reading{}, fmt.Errorf("read result: %w", err)
	}

	r := Reading{
		Cycle:       l.cycle,
		At:          l.clock.Now(),
		Raw:         raw,
		Temperature: l.convert(raw),
	}
	l.writeLine(FormatLine(r.Temperature))
	for _, rep := range l.reporters {
		rep.Report(r)
	}

	l.cycle++
	l.state = StateReported
	l.logger.Debug("reading", "cycle", r.Cycle, "raw", r.Raw,
		"celsius", r.Temperature.Celsius, "fahrenheit", r.Temperature.Fahrenheit)
	return r, nil
}

// wait polls the completion flag until it is set, ctx is done, or the poll
// budget is exhausted.
func (l *Loop) wait(ctx context.Context) error {
	l.state = StateWaiting
	start := l.clock.Now()
	polls := 0
	for !l.src.Completed(l.seq) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.budget > 0 && l.clock.Now().Sub(start) >= l.budget {
			l.logger.Error("conversion timed out", "budget", l.budget, "polls", polls)
			return fmt.Errorf("%w: sequence %d after %s", ErrHardwareTimeout, l.seq, l.budget)
		}
		polls++
		l.clock.Yield()
	}
	return nil
}

func (l *Loop) writeLine(text string) {
	if err := l.con.WriteLine(text); err != nil {
		l.logger.Debug("console write failed", "err", err)
	}
}

// Run initializes the sequencer if needed and cycles until ctx is done or a
// cycle fails.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Init(); err != nil {
		return err
	}
	for {
		if _, err := l.Cycle(ctx); err != nil {
			return err
		}
		if err := l.clock.Sleep(ctx, l.period); err != nil {
			return err
		}
	}
}

// FormatLine renders the console report of a temperature.
func FormatLine(t thermo.Temperature) string {
	return fmt.Sprintf("Temperature %3d *C", t.Celsius)
}

//go:build !tinygo

package adc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the baud rate of the remote sampler firmware.
	DefaultBaudRate = 115200
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

type remoteResult struct {
	raw   RawSample
	ready bool
	valid bool
}

// Serial drives a converter on a peer MCU over a serial link.
//
// Requests are single lines: "E" enables the converter, "C<seq>,<trigger>,<prio>"
// configures a sequence, "S<seq>,<step>,<channel>,<flags>" configures a step,
// "N<seq>" enables a sequence and "T<seq>" triggers it. The peer answers every
// finished conversion with "<seq>,<raw>".
type Serial struct {
	port     string
	baudRate int
	logger   *slog.Logger

	conn      io.ReadWriteCloser
	mu        sync.RWMutex
	wmu       sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}
	results   map[SequenceID]*remoteResult
}

var _ Sequencer = (*Serial)(nil)

// NewSerial creates a remote sequencer for the given port and baud rate.
func NewSerial(port string, baudRate int, logger *slog.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		logger:   logger.With("port", port),
		results:  make(map[SequenceID]*remoteResult),
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Connect opens the serial port and starts reading conversion results.
func (d *Serial) Connect() error {
	d.mu.RLock()
	connected := d.connected
	d.mu.RUnlock()
	if connected {
		return fmt.Errorf("already connected")
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}
	return d.attach(port)
}

// attach starts the reader on an already open connection.
func (d *Serial) attach(conn io.ReadWriteCloser) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.conn = conn
	d.connected = true
	d.done = make(chan struct{})

	go d.readResults(conn, d.done)

	return nil
}

// Close closes the connection and waits for the reader to stop.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}

	d.cancel()
	var err error
	if d.conn != nil {
		err = d.conn.Close()
		d.conn = nil
	}
	d.connected = false
	done := d.done
	d.mu.Unlock()

	<-done

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// IsConnected returns whether the link is open.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

func (d *Serial) send(format string, args ...any) error {
	d.mu.RLock()
	conn := d.conn
	connected := d.connected
	d.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}

	d.wmu.Lock()
	defer d.wmu.Unlock()

	if _, err := fmt.Fprintf(conn, format+"\n", args...); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

func (d *Serial) EnableADC() error {
	return d.send("E")
}

func (d *Serial) ConfigureSequencer(seq SequenceID, trigger Trigger, priority uint8) error {
	if err := d.send("C%d,%d,%d", seq, trigger, priority); err != nil {
		return err
	}
	d.mu.Lock()
	d.results[seq] = &remoteResult{}
	d.mu.Unlock()
	return nil
}

func (d *Serial) ConfigureStep(seq SequenceID, step StepID, ch Channel, flags StepFlags) error {
	if !d.known(seq) {
		return fmt.Errorf("%w: %d", ErrUnknownSequence, seq)
	}
	return d.send("S%d,%d,%d,%d", seq, step, ch, flags)
}

func (d *Serial) EnableSequencer(seq SequenceID) error {
	if !d.known(seq) {
		return fmt.Errorf("%w: %d", ErrUnknownSequence, seq)
	}
	return d.send("N%d", seq)
}

func (d *Serial) known(seq SequenceID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.results[seq]
	return ok
}

// ClearStatus forgets any completion reported for seq.
func (d *Serial) ClearStatus(seq SequenceID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.results[seq]; ok {
		r.ready = false
	}
}

// Completed reports whether a result for seq arrived since the last ClearStatus.
func (d *Serial) Completed(seq SequenceID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.results[seq]
	return ok && r.ready
}

// Trigger asks the peer to start one conversion.
func (d *Serial) Trigger(seq SequenceID) error {
	if !d.known(seq) {
		return fmt.Errorf("%w: %d", ErrUnknownSequence, seq)
	}
	return d.send("T%d", seq)
}

// ReadResult returns the most recent code received for seq.
func (d *Serial) ReadResult(seq SequenceID) (RawSample, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.results[seq]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownSequence, seq)
	}
	if !r.valid {
		return 0, ErrNoResult
	}
	return r.raw, nil
}

// readResults reads reply lines and raises completion flags.
func (d *Serial) readResults(conn io.Reader, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in serial reader", "panic", r)
		}
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		seq, raw, err := parseLine(line)
		if err != nil {
			d.logger.Warn("failed to parse line", "line", line, "err", err)
			continue
		}

		d.mu.Lock()
		r, ok := d.results[seq]
		if ok {
			r.raw = raw
			r.valid = true
			r.ready = true
		}
		d.mu.Unlock()
		if !ok {
			d.logger.Warn("result for unconfigured sequence", "seq", seq)
		}
	}

	if err := scanner.Err(); err != nil && d.ctx.Err() == nil {
		d.logger.Error("error reading from serial port", "err", err)
	}
}

// parseLine parses a conversion reply.
// Format: seq,raw
// Example: 3,2048
func parseLine(line string) (SequenceID, RawSample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid line format: expected 2 comma-separated values, got %d", len(parts))
	}

	seq, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid sequence: %w", err)
	}

	raw, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid reading: %w", err)
	}
	if raw > uint64(MaxRaw) {
		return 0, 0, fmt.Errorf("reading out of range: %d (max %d)", raw, MaxRaw)
	}

	return SequenceID(seq), RawSample(raw), nil
}

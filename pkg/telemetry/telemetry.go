package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/itohio/gotemp/pkg/sampler"
	"github.com/itohio/gotemp/pkg/thermo"
)

// Publisher delivers one payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Message is the JSON document published for every reading.
type Message struct {
	Station      string    `json:"station"`
	Cycle        uint64    `json:"cycle"`
	Timestamp    time.Time `json:"timestamp"`
	Raw          uint16    `json:"raw"`
	Celsius      int32     `json:"celsius"`
	Fahrenheit   int32     `json:"fahrenheit"`
	CelsiusExact float32   `json:"celsius_exact"`
}

// Reporter forwards readings to a Publisher from its own goroutine so slow
// brokers never delay the sampling loop. Readings that do not fit the queue
// are dropped.
type Reporter struct {
	pub     Publisher
	station string
	topic   string
	logger  *slog.Logger

	queue   chan sampler.Reading
	mu      sync.Mutex
	dropped int
	sent    int
	done    chan struct{}
}

var _ sampler.Reporter = (*Reporter)(nil)

// NewReporter creates a reporter publishing to <prefix>/<station>/temperature.
func NewReporter(pub Publisher, prefix, station string, queueSize int, logger *slog.Logger) *Reporter {
	if queueSize <= 0 {
		queueSize = 16
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reporter{
		pub:     pub,
		station: station,
		topic:   Topic(prefix, station),
		logger:  logger.With("topic", Topic(prefix, station)),
		queue:   make(chan sampler.Reading, queueSize),
		done:    make(chan struct{}),
	}
}

// Topic returns the temperature topic of a station.
func Topic(prefix, station string) string {
	return fmt.Sprintf("%s/%s/temperature", prefix, station)
}

// Report queues a reading without blocking.
func (r *Reporter) Report(reading sampler.Reading) {
	select {
	case r.queue <- reading:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.logger.Warn("telemetry queue full, dropping reading", "cycle", reading.Cycle)
	}
}

// Run publishes queued readings until ctx is done, then drains what is left.
func (r *Reporter) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case reading := <-r.queue:
					r.publish(reading)
				default:
					return
				}
			}
		case reading := <-r.queue:
			r.publish(reading)
		}
	}
}

// Done is closed when Run returns.
func (r *Reporter) Done() <-chan struct{} { return r.done }

func (r *Reporter) publish(reading sampler.Reading) {
	payload, err := json.Marshal(NewMessage(r.station, reading))
	if err != nil {
		r.logger.Error("marshal telemetry", "err", err)
		return
	}
	if err := r.pub.Publish(r.topic, payload); err != nil {
		r.logger.Warn("publish telemetry", "cycle", reading.Cycle, "err", err)
		return
	}
	r.mu.Lock()
	r.sent++
	r.mu.Unlock()
}

// Stats returns the number of published and dropped readings.
func (r *Reporter) Stats() (sent, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent, r.dropped
}

// NewMessage builds the telemetry document for a reading.
func NewMessage(station string, reading sampler.Reading) Message {
	exact, _ := thermo.Exact(reading.Raw)
	return Message{
		Station:      station,
		Cycle:        reading.Cycle,
		Timestamp:    reading.At,
		Raw:          uint16(reading.Raw),
		Celsius:      reading.Temperature.Celsius,
		Fahrenheit:   reading.Temperature.Fahrenheit,
		CelsiusExact: exact,
	}
}

package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/itohio/gotemp/pkg/config"
)

// MQTT is a Publisher backed by a paho client.
type MQTT struct {
	client         mqtt.Client
	logger         *slog.Logger
	publishTimeout time.Duration
	mu             sync.RWMutex
	connected      bool
}

var _ Publisher = (*MQTT)(nil)

// NewMQTT configures a client for the broker in cfg. It does not connect.
func NewMQTT(cfg config.MQTTConfig, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := &MQTT{
		logger:         logger.With("broker", cfg.Broker, "client_id", cfg.ClientID),
		publishTimeout: cfg.PublishTimeout,
	}

	if m.publishTimeout <= 0 {
		m.publishTimeout = config.Default().MQTT.PublishTimeout
	}

	opts := clientOptions(cfg)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		m.setConnected(true)
		m.logger.Info("telemetry broker connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.setConnected(false)
		m.logger.Warn("telemetry broker lost", "err", err)
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		m.logger.Debug("telemetry broker reconnecting")
	})

	m.client = mqtt.NewClient(opts)
	return m
}

// clientOptions maps the telemetry config onto paho options. Readings are
// fire-and-forget, so the session is clean and the client keeps retrying.
func clientOptions(cfg config.MQTTConfig) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(cfg.RetryInterval).
		SetMaxReconnectInterval(cfg.MaxReconnectInterval).
		SetKeepAlive(cfg.KeepAlive).
		SetPingTimeout(cfg.PingTimeout)
}

// Connect blocks until the first connection succeeds or ctx is done. On
// cancellation the pending connect is abandoned.
func (m *MQTT) Connect(ctx context.Context) error {
	token := m.client.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		m.client.Disconnect(0)
		return ctx.Err()
	}
}

// Publish sends payload with QoS 0.
func (m *MQTT) Publish(topic string, payload []byte) error {
	if !m.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	token := m.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(m.publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (m *MQTT) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected && m.client.IsConnected()
}

// Disconnect closes the connection, waiting up to 250ms for in-flight work.
func (m *MQTT) Disconnect() {
	m.client.Disconnect(250)
	m.setConnected(false)
}

func (m *MQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/geappliances-bridge/internal/discovery"
	"github.com/nerrad567/geappliances-bridge/internal/erd"
	"github.com/nerrad567/geappliances-bridge/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the subset of *mqtt.Client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// MessageHandler processes inbound observations.
// This interface is satisfied by *discovery.Engine.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg discovery.Message) error
}

// Options holds configuration for creating a Bridge.
type Options struct {
	MQTT   MQTTClient
	Topics mqtt.Topics
	QoS    byte
	Logger Logger
}

// Bridge is the MQTT side of the appliance bridge.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	mqtt   MQTTClient
	topics mqtt.Topics
	qos    byte

	handler   MessageHandler
	handlerMu sync.RWMutex

	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once

	logger Logger
}

// New creates a Bridge. The message handler is set separately because the
// discovery engine's store needs the bridge as its transport.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, errors.New("bridge: mqtt client is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		mqtt:      opts.MQTT,
		topics:    opts.Topics,
		qos:       opts.QoS,
		ctx:       ctx,
		ctxCancel: cancel,
		logger:    opts.Logger,
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	return b, nil
}

// SetHandler sets where inbound messages go.
func (b *Bridge) SetHandler(h MessageHandler) {
	b.handlerMu.Lock()
	b.handler = h
	b.handlerMu.Unlock()
}

// Start subscribes to every appliance topic.
func (b *Bridge) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic := b.topics.AllDevices()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.logger.Info("bridge started", "topic", topic)
	return nil
}

// Stop unsubscribes and cancels in-flight message handling. It is safe to
// call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.mqtt.IsConnected() {
			if err := b.mqtt.Unsubscribe(b.topics.AllDevices()); err != nil {
				b.logger.Warn("unsubscribing", "error", err)
			}
		}
		b.ctxCancel()
		b.logger.Info("bridge stopped")
	})
}

// handleMessage is the MQTT callback for the appliance namespace.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	info, err := b.topics.Parse(topic)
	if err != nil {
		b.logger.Error("bad GE Appliances MQTT topic", "topic", topic)
		return nil
	}

	b.handlerMu.RLock()
	h := b.handler
	b.handlerMu.RUnlock()
	if h == nil {
		return nil
	}

	msg := discovery.Message{Device: info.Device}
	switch info.Kind {
	case mqtt.TopicWrite:
		return nil
	case mqtt.TopicValue:
		text := strings.TrimSpace(string(payload))
		if text == "" {
			b.logger.Debug("empty ERD value ignored", "topic", topic)
			return nil
		}
		value, err := erd.DecodeHex(text)
		if err != nil {
			b.logger.Warn("invalid ERD payload", "topic", topic, "error", err)
			return nil
		}
		msg.ERD = info.ERD
		msg.Value = value
		msg.HasValue = true
	}

	err = h.HandleMessage(b.ctx, msg)
	if errors.Is(err, discovery.ErrUnknownAPIVersion) {
		// Already logged by the engine; the message is consumed.
		return nil
	}
	if err != nil {
		return fmt.Errorf("handling %s: %w", topic, err)
	}
	return nil
}

// PublishERD sends value to the device's ERD write topic as hex text.
// It implements erd.Transport.
func (b *Bridge) PublishERD(ctx context.Context, device string, id erd.ID, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic := b.topics.ERDWrite(device, id)
	if err := b.mqtt.Publish(topic, []byte(erd.EncodeHex(value)), b.qos, false); err != nil {
		return err
	}
	b.logger.Debug("ERD write published", "topic", topic)
	return nil
}

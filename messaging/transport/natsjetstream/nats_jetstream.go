// Package natsjetstream 基于 NATS JetStream 实现 messaging.Transport
package natsjetstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"allocation/logging"
	"allocation/messaging"
)

// Config JetStream 传输配置
type Config struct {
	URL           string        `yaml:"url"`
	Stream        string        `yaml:"stream"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	DurablePrefix string        `yaml:"durable_prefix"`
	AckWait       time.Duration `yaml:"ack_wait"`
	MaxAckPending int           `yaml:"max_ack_pending"`
	// Retention workqueue|limits|interest，默认 workqueue
	Retention string `yaml:"retention"`
	Replicas  int    `yaml:"replicas"`
	Conn      *nats.Conn     `yaml:"-"`
	Logger    logging.Logger `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Stream == "" {
		c.Stream = "ALLOCATION"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "allocation."
	}
	if c.DurablePrefix == "" {
		c.DurablePrefix = "allocation-"
	}
	if c.AckWait <= 0 {
		c.AckWait = 30 * time.Second
	}
	if c.MaxAckPending <= 0 {
		c.MaxAckPending = 1024
	}
	if c.Logger == nil {
		c.Logger = logging.ComponentLogger("transport.nats")
	}
}

// Transport 通道映射为 subject，订阅使用持久化队列消费者
type Transport struct {
	cfg    Config
	logger logging.Logger
	subs   *messaging.Subscribers

	mu       sync.RWMutex
	conn     *nats.Conn
	js       nats.JetStreamContext
	ownsConn bool
	natsSubs map[string]*nats.Subscription
	running  bool
}

func NewTransport(cfg Config) *Transport {
	cfg.applyDefaults()
	return &Transport{
		cfg:      cfg,
		logger:   cfg.Logger,
		subs:     messaging.NewSubscribers(),
		natsSubs: make(map[string]*nats.Subscription),
	}
}

func (t *Transport) Publish(ctx context.Context, message *messaging.Message) error {
	t.mu.RLock()
	js, running := t.js, t.running
	t.mu.RUnlock()
	if !running || js == nil {
		return messaging.ErrTransportStopped
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", message.ID, err)
	}
	if _, err := js.Publish(t.subjectName(message.Type), data, nats.Context(ctx), nats.MsgId(message.ID)); err != nil {
		return fmt.Errorf("jetstream publish %s: %w", message.Type, err)
	}
	return nil
}

func (t *Transport) Subscribe(channel string, handler messaging.IMessageHandler) error {
	if channel == messaging.Wildcard {
		return fmt.Errorf("nats jetstream: wildcard subscription not supported")
	}
	if _, err := t.subs.Add(channel, handler); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return t.subscribeLocked(channel)
	}
	return nil
}

// Start 连接服务器、确保流存在并为已订阅通道建立消费者
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return errors.New("nats transport already running")
	}
	if err := t.connectLocked(); err != nil {
		return err
	}
	if err := t.ensureStreamLocked(); err != nil {
		return err
	}
	for _, ch := range t.subs.Channels() {
		if err := t.subscribeLocked(ch); err != nil {
			return err
		}
	}
	t.running = true
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	for ch, sub := range t.natsSubs {
		if err := sub.Drain(); err != nil {
			t.logger.Warn(context.Background(), "drain subscription failed", logging.String("channel", ch), logging.Error(err))
		}
		delete(t.natsSubs, ch)
	}
	if t.ownsConn && t.conn != nil {
		t.conn.Close()
	}
	t.conn, t.js = nil, nil
	return nil
}

func (t *Transport) Stats() messaging.TransportStats {
	t.mu.RLock()
	running := t.running
	t.mu.RUnlock()
	return t.subs.Stats(running)
}

func (t *Transport) connectLocked() error {
	if t.js != nil {
		return nil
	}
	if t.cfg.Conn != nil {
		t.conn = t.cfg.Conn
	} else {
		conn, err := nats.Connect(t.cfg.URL, nats.Name("allocation"))
		if err != nil {
			return fmt.Errorf("connect nats %s: %w", t.cfg.URL, err)
		}
		t.conn, t.ownsConn = conn, true
	}
	js, err := t.conn.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}
	t.js = js
	return nil
}

func (t *Transport) ensureStreamLocked() error {
	_, err := t.js.StreamInfo(t.cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", t.cfg.Stream, err)
	}
	_, err = t.js.AddStream(streamConfig(t.cfg))
	return err
}

func streamConfig(cfg Config) *nats.StreamConfig {
	retention := nats.WorkQueuePolicy
	switch strings.ToLower(cfg.Retention) {
	case "limits":
		retention = nats.LimitsPolicy
	case "interest":
		retention = nats.InterestPolicy
	}
	sc := &nats.StreamConfig{
		Name:              cfg.Stream,
		Subjects:          []string{cfg.SubjectPrefix + ">"},
		Retention:         retention,
		MaxMsgsPerSubject: -1,
	}
	if cfg.Replicas > 0 {
		sc.Replicas = cfg.Replicas
	}
	return sc
}

func (t *Transport) subscribeLocked(channel string) error {
	if _, ok := t.natsSubs[channel]; ok {
		return nil
	}
	durable := t.cfg.DurablePrefix + channel
	sub, err := t.js.QueueSubscribe(t.subjectName(channel), durable, t.onMessage(channel),
		nats.ManualAck(),
		nats.Durable(durable),
		nats.AckWait(t.cfg.AckWait),
		nats.MaxAckPending(t.cfg.MaxAckPending))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	t.natsSubs[channel] = sub
	return nil
}

func (t *Transport) onMessage(channel string) nats.MsgHandler {
	return func(m *nats.Msg) {
		ctx := context.Background()
		msg, err := decode(m.Data, channel)
		if err != nil {
			t.logger.Warn(ctx, "decode nats message failed", logging.String("subject", m.Subject), logging.Error(err))
		} else if err := t.subs.Dispatch(messaging.ContextFor(ctx, msg), msg); err != nil {
			t.logger.Error(ctx, "nats message handler failed",
				logging.String("channel", channel), logging.String("message_id", msg.ID), logging.Error(err))
		}
		if err := m.Ack(); err != nil {
			t.logger.Warn(ctx, "nats ack failed", logging.Error(err))
		}
	}
}

func (t *Transport) subjectName(channel string) string {
	return t.cfg.SubjectPrefix + channel
}

// decode 解码信封；缺少 type 时使用订阅通道名
func decode(data []byte, channel string) (*messaging.Message, error) {
	var msg messaging.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		msg.Type = channel
	}
	if msg.Metadata == nil {
		msg.Metadata = make(map[string]string)
	}
	return &msg, nil
}

// Package kafka 基于 segmentio/kafka-go 实现 messaging.Transport，通道即 topic
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"allocation/logging"
	"allocation/messaging"
)

const headerCorrelationID = "correlation_id"

// Config Kafka 传输配置
type Config struct {
	Brokers      []string      `yaml:"brokers"`
	TopicPrefix  string        `yaml:"topic_prefix"`
	GroupID      string        `yaml:"group_id"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	Logger       logging.Logger `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.GroupID == "" {
		c.GroupID = "allocation"
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = logging.ComponentLogger("transport.kafka")
	}
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Transport 每个订阅通道一个消费组 reader，发布共享一个 writer
type Transport struct {
	cfg       Config
	logger    logging.Logger
	subs      *messaging.Subscribers
	writer    writer
	newReader func(topic string) reader

	mu      sync.Mutex
	readers map[string]reader
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewTransport(cfg Config) (*Transport, error) {
	cfg.applyDefaults()
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	newReader := func(topic string) reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   topic,
		})
	}
	return newTransport(cfg, w, newReader), nil
}

func newTransport(cfg Config, w writer, newReader func(string) reader) *Transport {
	return &Transport{
		cfg:       cfg,
		logger:    cfg.Logger,
		subs:      messaging.NewSubscribers(),
		writer:    w,
		newReader: newReader,
		readers:   make(map[string]reader),
	}
}

// Publish 消息 key 为信封 ID，关联 ID 写入 header
func (t *Transport) Publish(ctx context.Context, message *messaging.Message) error {
	km, err := toKafka(t.topicName(message.Type), message)
	if err != nil {
		return err
	}
	if err := t.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("kafka write %s: %w", km.Topic, err)
	}
	return nil
}

func (t *Transport) Subscribe(channel string, handler messaging.IMessageHandler) error {
	if channel == messaging.Wildcard {
		return fmt.Errorf("kafka: wildcard subscription not supported")
	}
	if _, err := t.subs.Add(channel, handler); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.startReaderLocked(channel)
	}
	return nil
}

func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("kafka transport already running")
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.running = true
	for _, ch := range t.subs.Channels() {
		t.startReaderLocked(ch)
	}
	return nil
}

// Close 停止读取协程并关闭所有 reader 与 writer
func (t *Transport) Close() error {
	t.mu.Lock()
	cancel := t.cancel
	readers := t.readers
	t.running = false
	t.cancel = nil
	t.readers = make(map[string]reader)
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()

	var errs []error
	for _, r := range readers {
		errs = append(errs, r.Close())
	}
	errs = append(errs, t.writer.Close())
	return errors.Join(errs...)
}

func (t *Transport) Stats() messaging.TransportStats {
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()
	return t.subs.Stats(running)
}

func (t *Transport) startReaderLocked(channel string) {
	if _, ok := t.readers[channel]; ok {
		return
	}
	r := t.newReader(t.topicName(channel))
	t.readers[channel] = r
	t.wg.Add(1)
	go t.readLoop(t.ctx, channel, r)
}

func (t *Transport) readLoop(ctx context.Context, channel string, r reader) {
	defer t.wg.Done()
	for {
		km, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn(ctx, "kafka fetch failed", logging.String("channel", channel), logging.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		t.consume(ctx, channel, km)
		if err := r.CommitMessages(ctx, km); err != nil && ctx.Err() == nil {
			t.logger.Warn(ctx, "kafka commit failed", logging.Int64("offset", km.Offset), logging.Error(err))
		}
	}
}

func (t *Transport) consume(ctx context.Context, channel string, km kafka.Message) {
	msg, err := fromKafka(km, channel)
	if err != nil {
		t.logger.Warn(ctx, "decode kafka message failed", logging.String("topic", km.Topic), logging.Error(err))
		return
	}
	if err := t.subs.Dispatch(messaging.ContextFor(ctx, msg), msg); err != nil {
		t.logger.Error(ctx, "kafka message handler failed",
			logging.String("channel", channel), logging.String("message_id", msg.ID), logging.Error(err))
	}
}

func (t *Transport) topicName(channel string) string {
	return t.cfg.TopicPrefix + channel
}

func toKafka(topic string, msg *messaging.Message) (kafka.Message, error) {
	value, err := json.Marshal(msg)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	km := kafka.Message{Topic: topic, Key: []byte(msg.ID), Value: value, Time: msg.Timestamp}
	if id := msg.Metadata[messaging.MetaCorrelationID]; id != "" {
		km.Headers = append(km.Headers, kafka.Header{Key: headerCorrelationID, Value: []byte(id)})
	}
	return km, nil
}

func fromKafka(km kafka.Message, channel string) (*messaging.Message, error) {
	var msg messaging.Message
	if err := json.Unmarshal(km.Value, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		msg.Type = channel
	}
	if msg.ID == "" {
		msg.ID = string(km.Key)
	}
	for _, h := range km.Headers {
		if h.Key == headerCorrelationID && msg.Metadata[messaging.MetaCorrelationID] == "" {
			msg.SetMetadata(messaging.MetaCorrelationID, string(h.Value))
		}
	}
	return &msg, nil
}

// Package redisstreams 基于 Redis Streams 消费组实现 messaging.Transport
package redisstreams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"allocation/logging"
	"allocation/messaging"
)

// client 传输层用到的 go-redis 命令子集
type client interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	Close() error
}

// Config Redis Streams 传输配置
type Config struct {
	Client       redis.UniversalClient `yaml:"-"`
	Addr         string `yaml:"addr"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	StreamPrefix string `yaml:"stream_prefix"`
	GroupName    string `yaml:"group"`
	ConsumerName string `yaml:"consumer"`
	// MaxLen 流近似最大长度，0 表示不裁剪
	MaxLen         int64         `yaml:"max_len"`
	BlockTimeout   time.Duration `yaml:"block_timeout"`
	ReadCount      int64         `yaml:"read_count"`
	MinReadBackoff time.Duration `yaml:"min_read_backoff"`
	MaxReadBackoff time.Duration `yaml:"max_read_backoff"`
	Logger         logging.Logger `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.StreamPrefix == "" {
		c.StreamPrefix = "allocation:"
	}
	if c.GroupName == "" {
		c.GroupName = "allocation"
	}
	if c.ConsumerName == "" {
		c.ConsumerName = "consumer-" + uuid.NewString()
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = 5 * time.Second
	}
	if c.ReadCount <= 0 {
		c.ReadCount = 10
	}
	if c.MinReadBackoff <= 0 {
		c.MinReadBackoff = 100 * time.Millisecond
	}
	if c.MaxReadBackoff <= 0 {
		c.MaxReadBackoff = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logging.ComponentLogger("transport.redisstreams")
	}
}

// Transport 每个通道对应一个流，订阅者以消费组方式读取
type Transport struct {
	cfg       Config
	client    client
	ownClient bool
	logger    logging.Logger
	subs      *messaging.Subscribers

	mu      sync.Mutex
	readers map[string]bool
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewTransport(cfg Config) (*Transport, error) {
	cfg.applyDefaults()
	var (
		cl  client
		own bool
	)
	if cfg.Client != nil {
		cl = cfg.Client
	} else {
		if cfg.Addr == "" {
			return nil, errors.New("redis streams: addr or client required")
		}
		cl = redis.NewClient(&redis.Options{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB})
		own = true
	}
	return newTransport(cfg, cl, own), nil
}

func newTransport(cfg Config, cl client, own bool) *Transport {
	return &Transport{
		cfg:       cfg,
		client:    cl,
		ownClient: own,
		logger:    cfg.Logger,
		subs:      messaging.NewSubscribers(),
		readers:   make(map[string]bool),
	}
}

// Publish XADD 到通道对应的流
func (t *Transport) Publish(ctx context.Context, message *messaging.Message) error {
	values, err := encodeMessage(message)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{Stream: t.streamName(message.Type), Values: values}
	if t.cfg.MaxLen > 0 {
		args.MaxLen = t.cfg.MaxLen
		args.Approx = true
	}
	if err := t.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", args.Stream, err)
	}
	return nil
}

func (t *Transport) Subscribe(channel string, handler messaging.IMessageHandler) error {
	if channel == messaging.Wildcard {
		return fmt.Errorf("redis streams: wildcard subscription not supported")
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

// Start 为每个已订阅通道启动读取协程
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("redis streams transport already running")
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.running = true
	for _, ch := range t.subs.Channels() {
		t.startReaderLocked(ch)
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	cancel := t.cancel
	t.running = false
	t.cancel = nil
	t.readers = make(map[string]bool)
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
	if t.ownClient {
		return t.client.Close()
	}
	return nil
}

func (t *Transport) Stats() messaging.TransportStats {
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()
	return t.subs.Stats(running)
}

func (t *Transport) startReaderLocked(channel string) {
	if t.readers[channel] {
		return
	}
	t.readers[channel] = true
	t.wg.Add(1)
	go t.readLoop(t.ctx, channel)
}

func (t *Transport) readLoop(ctx context.Context, channel string) {
	defer t.wg.Done()
	stream := t.streamName(channel)
	if err := t.ensureGroup(ctx, stream); err != nil {
		t.logger.Warn(ctx, "ensure consumer group failed", logging.String("stream", stream), logging.Error(err))
	}
	args := &redis.XReadGroupArgs{
		Group:    t.cfg.GroupName,
		Consumer: t.cfg.ConsumerName,
		Streams:  []string{stream, ">"},
		Count:    t.cfg.ReadCount,
		Block:    t.cfg.BlockTimeout,
	}
	backoff := t.cfg.MinReadBackoff
	for ctx.Err() == nil {
		res, err := t.client.XReadGroup(ctx, args).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			t.logger.Warn(ctx, "xreadgroup failed", logging.String("stream", stream), logging.Duration("backoff", backoff), logging.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			backoff = min(backoff*2, t.cfg.MaxReadBackoff)
			continue
		}
		backoff = t.cfg.MinReadBackoff
		for _, sr := range res {
			for _, entry := range sr.Messages {
				t.consume(ctx, sr.Stream, entry)
			}
		}
	}
}

// consume 无论处理成功与否都会 ACK；处理失败只记录日志
func (t *Transport) consume(ctx context.Context, stream string, entry redis.XMessage) {
	msg, err := decodeMessage(entry)
	if err != nil {
		t.logger.Warn(ctx, "decode stream entry failed", logging.String("entry_id", entry.ID), logging.Error(err))
	} else if err := t.subs.Dispatch(messaging.ContextFor(ctx, msg), msg); err != nil {
		t.logger.Error(ctx, "stream message handler failed",
			logging.String("channel", msg.Type), logging.String("message_id", msg.ID), logging.Error(err))
	}
	if err := t.client.XAck(ctx, stream, t.cfg.GroupName, entry.ID).Err(); err != nil {
		t.logger.Warn(ctx, "xack failed", logging.String("entry_id", entry.ID), logging.Error(err))
	}
}

func (t *Transport) ensureGroup(ctx context.Context, stream string) error {
	err := t.client.XGroupCreateMkStream(ctx, stream, t.cfg.GroupName, "0").Err()
	if err == nil || strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP") {
		return nil
	}
	return err
}

func (t *Transport) streamName(channel string) string {
	return t.cfg.StreamPrefix + channel
}

func encodeMessage(msg *messaging.Message) (map[string]any, error) {
	metadata, err := json.Marshal(msg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return map[string]any{
		"id":        msg.ID,
		"type":      msg.Type,
		"timestamp": strconv.FormatInt(ts.UnixNano(), 10),
		"payload":   string(msg.Payload),
		"metadata":  string(metadata),
	}, nil
}

func decodeMessage(entry redis.XMessage) (*messaging.Message, error) {
	str := func(k string) string {
		v, _ := entry.Values[k].(string)
		return v
	}
	msg := &messaging.Message{
		ID:        str("id"),
		Type:      str("type"),
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]string),
	}
	if msg.ID == "" {
		msg.ID = entry.ID
	}
	if p := str("payload"); p != "" {
		if !json.Valid([]byte(p)) {
			return nil, fmt.Errorf("entry %s: payload is not valid json", entry.ID)
		}
		msg.Payload = json.RawMessage(p)
	}
	if m := str("metadata"); m != "" && m != "null" {
		if err := json.Unmarshal([]byte(m), &msg.Metadata); err != nil {
			return nil, fmt.Errorf("entry %s metadata: %w", entry.ID, err)
		}
	}
	if ns, err := strconv.ParseInt(str("timestamp"), 10, 64); err == nil {
		msg.Timestamp = time.Unix(0, ns).UTC()
	}
	return msg, nil
}

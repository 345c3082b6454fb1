// Package memory 提供基于内存队列与 worker 池的异步进程内传输
package memory

import (
	"context"
	"fmt"
	"sync"

	"allocation/logging"
	"allocation/messaging"
)

const (
	defaultQueueSize   = 1000
	defaultWorkerCount = 4
)

// MemoryTransport 异步内存传输；处理器错误只记录日志，不回传给发布者
type MemoryTransport struct {
	subs        *messaging.Subscribers
	queue       chan *messaging.Message
	queueSize   int
	workerCount int
	logger      logging.Logger

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup
}

// NewMemoryTransport queueSize、workerCount 非正时取默认值
func NewMemoryTransport(queueSize, workerCount int) *MemoryTransport {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	return newMemoryTransport(queueSize, workerCount)
}

// NewMemoryTransportForTest 创建没有 worker 的实例，消息只进队列不消费
func NewMemoryTransportForTest(queueSize int) *MemoryTransport {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return newMemoryTransport(queueSize, 0)
}

func newMemoryTransport(queueSize, workerCount int) *MemoryTransport {
	return &MemoryTransport{
		subs:        messaging.NewSubscribers(),
		queue:       make(chan *messaging.Message, queueSize),
		queueSize:   queueSize,
		workerCount: workerCount,
		logger:      logging.ComponentLogger("transport.memory"),
	}
}

// Publish 入队，队列满时立即失败
func (t *MemoryTransport) Publish(ctx context.Context, message *messaging.Message) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.running {
		return messaging.ErrTransportStopped
	}
	select {
	case t.queue <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("memory transport queue is full (size %d)", t.queueSize)
	}
}

func (t *MemoryTransport) Subscribe(channel string, handler messaging.IMessageHandler) error {
	_, err := t.subs.Add(channel, handler)
	return err
}

// Start 启动 worker 池。worker 沿用 ctx 的值但不随其取消，
// 只在 Close 关闭队列并处理完剩余消息后退出。
func (t *MemoryTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("memory transport is already running")
	}
	t.running = true
	workerCtx := context.WithoutCancel(ctx)
	for i := 0; i < t.workerCount; i++ {
		t.wg.Add(1)
		go t.worker(workerCtx)
	}
	return nil
}

// Close 停止接收新消息并等待队列中的消息处理完毕
func (t *MemoryTransport) Close() error {
	_, err := t.CloseWithContext(context.Background())
	return err
}

// CloseWithContext 等待 worker 退出；ctx 超时返回错误。
// 没有 worker 时返回仍在队列中的消息。
func (t *MemoryTransport) CloseWithContext(ctx context.Context) ([]*messaging.Message, error) {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil, fmt.Errorf("memory transport is not running")
	}
	t.running = false
	close(t.queue)
	t.mu.Unlock()

	if t.workerCount == 0 {
		pending := make([]*messaging.Message, 0, len(t.queue))
		for m := range t.queue {
			pending = append(pending, m)
		}
		return pending, nil
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("memory transport close: %w", ctx.Err())
	}
}

func (t *MemoryTransport) Stats() messaging.TransportStats {
	t.mu.RLock()
	running := t.running
	t.mu.RUnlock()
	return t.subs.Stats(running)
}

// QueueDepth 队列中尚未消费的消息数
func (t *MemoryTransport) QueueDepth() int {
	return len(t.queue)
}

func (t *MemoryTransport) worker(ctx context.Context) {
	defer t.wg.Done()
	for message := range t.queue {
		if err := t.subs.Dispatch(messaging.ContextFor(ctx, message), message); err != nil {
			t.logger.Warn(ctx, "message handler failed",
				logging.String("channel", message.Type),
				logging.String("message_id", message.ID),
				logging.Error(err))
		}
	}
}

// Package sync 提供同步的进程内传输：Publish 在调用方 goroutine 中直接执行所有处理器
package sync

import (
	"context"
	"fmt"
	"sync/atomic"

	"allocation/messaging"
)

// SyncTransport 同步传输，用于测试与单进程部署
type SyncTransport struct {
	subs    *messaging.Subscribers
	running atomic.Bool
}

func NewSyncTransport() *SyncTransport {
	return &SyncTransport{subs: messaging.NewSubscribers()}
}

// Publish 同步执行处理器；没有订阅者不算错误
func (t *SyncTransport) Publish(ctx context.Context, message *messaging.Message) error {
	if !t.running.Load() {
		return messaging.ErrTransportStopped
	}
	if err := t.subs.Dispatch(messaging.ContextFor(ctx, message), message); err != nil {
		return fmt.Errorf("handle %s message %s: %w", message.Type, message.ID, err)
	}
	return nil
}

func (t *SyncTransport) Subscribe(channel string, handler messaging.IMessageHandler) error {
	_, err := t.subs.Add(channel, handler)
	return err
}

func (t *SyncTransport) Start(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sync transport is already running")
	}
	return nil
}

func (t *SyncTransport) Close() error {
	if !t.running.CompareAndSwap(true, false) {
		return fmt.Errorf("sync transport is not running")
	}
	return nil
}

func (t *SyncTransport) Stats() messaging.TransportStats {
	return t.subs.Stats(t.running.Load())
}

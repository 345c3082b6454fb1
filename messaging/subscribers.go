package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Wildcard 订阅所有通道
const Wildcard = "*"

// Subscribers 通道到处理器列表的并发安全映射，供各传输实现复用
type Subscribers struct {
	mu       sync.RWMutex
	handlers map[string][]IMessageHandler
}

func NewSubscribers() *Subscribers {
	return &Subscribers{handlers: make(map[string][]IMessageHandler)}
}

// Add 追加处理器，返回该通道是否为首次订阅
func (s *Subscribers) Add(channel string, handler IMessageHandler) (bool, error) {
	if channel == "" {
		return false, fmt.Errorf("subscribe: empty channel")
	}
	if handler == nil {
		return false, fmt.Errorf("subscribe %s: nil handler", channel)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.handlers[channel]) == 0
	s.handlers[channel] = append(s.handlers[channel], handler)
	return first, nil
}

// Channels 已订阅的通道（不含通配符），按名称排序
func (s *Subscribers) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.handlers))
	for ch := range s.handlers {
		if ch != Wildcard {
			out = append(out, ch)
		}
	}
	sort.Strings(out)
	return out
}

// Stats 汇总处理器数量
func (s *Subscribers) Stats(running bool) TransportStats {
	s.mu.RLock()
	count := 0
	for _, hs := range s.handlers {
		count += len(hs)
	}
	s.mu.RUnlock()
	return TransportStats{Running: running, HandlerCount: count, Channels: s.Channels()}
}

// Dispatch 依次调用精确匹配与通配符处理器，错误合并返回
func (s *Subscribers) Dispatch(ctx context.Context, message *Message) error {
	s.mu.RLock()
	exact := s.handlers[message.Type]
	wildcard := s.handlers[Wildcard]
	handlers := make([]IMessageHandler, 0, len(exact)+len(wildcard))
	handlers = append(handlers, exact...)
	handlers = append(handlers, wildcard...)
	s.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ContextFor 从元数据恢复关联 ID
func ContextFor(ctx context.Context, message *Message) context.Context {
	if id := message.Metadata[MetaCorrelationID]; id != "" {
		return WithCorrelationID(ctx, id)
	}
	return ctx
}

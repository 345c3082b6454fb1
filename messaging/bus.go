package messaging

import (
	"context"
	"time"

	"allocation/domain"
	"allocation/domain/commands"
	"allocation/domain/events"
	"allocation/logging"
	"allocation/patterns/retry"
	"allocation/service/unitofwork"
)

// HandlerFunc 中间件链中的执行单元：处理一条消息并返回结果
type HandlerFunc func(ctx context.Context, msg domain.Message) (any, error)

// IMiddleware 包裹每一次处理器调用（事件处理器的每次重试各算一次）
type IMiddleware interface {
	Handle(ctx context.Context, msg domain.Message, next HandlerFunc) (any, error)
	Name() string
}

// MessageBus 将一条入站命令展开为命令/事件级联并依次分派。
//
// 单次 Handle 在调用方 goroutine 内同步执行，队列先进先出；
// 并发只存在于相互独立的 Handle 调用之间，由存储的版本比较裁决。
type MessageBus struct {
	registry    *Registry
	uow         unitofwork.IUnitOfWorkFactory
	retry       retry.Config
	middlewares []IMiddleware
	logger      logging.Logger
}

// Option 总线选项
type Option func(*MessageBus)

// WithRetry 设置事件处理器的重试策略
func WithRetry(cfg retry.Config) Option {
	return func(b *MessageBus) { b.retry = cfg }
}

// WithMiddleware 追加中间件，先注册者在外层
func WithMiddleware(mws ...IMiddleware) Option {
	return func(b *MessageBus) { b.middlewares = append(b.middlewares, mws...) }
}

// WithLogger 替换日志器
func WithLogger(l logging.Logger) Option {
	return func(b *MessageBus) { b.logger = l }
}

// NewMessageBus 创建总线
func NewMessageBus(registry *Registry, uow unitofwork.IUnitOfWorkFactory, opts ...Option) *MessageBus {
	b := &MessageBus{
		registry: registry,
		uow:      uow,
		retry:    retry.DefaultConfig(),
		logger:   logging.ComponentLogger("messagebus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handle 处理一条消息及其引发的全部后续消息。
//
// 每处理一条命令向结果追加一项（无结果的命令为 nil）。命令失败时记录日志并立即返回；
// 事件处理器按策略重试，耗尽后记录日志并继续下一个处理器。
func (b *MessageBus) Handle(ctx context.Context, msg domain.Message) ([]any, error) {
	ctx = EnsureCorrelationID(ctx)
	queue := []domain.Message{msg}
	results := make([]any, 0, 1)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		switch m := current.(type) {
		case commands.Command:
			result, next, err := b.handleCommand(ctx, m)
			if err != nil {
				return results, err
			}
			results = append(results, result)
			queue = append(queue, next...)
		case events.Event:
			queue = append(queue, b.handleEvent(ctx, m)...)
		default:
			return results, busError(ErrCodeUnknownMessage, current.MessageName())
		}
	}
	return results, nil
}

func (b *MessageBus) handleCommand(ctx context.Context, cmd commands.Command) (any, []domain.Message, error) {
	handler, ok := b.registry.commandHandler(cmd)
	if !ok {
		err := busError(ErrCodeHandlerNotFound, cmd.MessageName())
		b.logger.Error(ctx, "no handler for command", logging.String("command", cmd.MessageName()))
		return nil, nil, err
	}

	var collected []domain.Message
	final := func(ctx context.Context, msg domain.Message) (any, error) {
		result, msgs, err := unitofwork.Run(ctx, b.uow, func(ctx context.Context, uow unitofwork.IUnitOfWork) (any, error) {
			return handler(ctx, uow, cmd)
		})
		collected = msgs
		return result, err
	}

	start := time.Now()
	result, err := b.chain(final)(ctx, cmd)
	if err != nil {
		b.logger.Error(ctx, "command failed",
			logging.String("command", cmd.MessageName()),
			logging.String("correlation_id", CorrelationID(ctx)),
			logging.Error(err))
		return nil, nil, err
	}
	b.logger.Debug(ctx, "command handled",
		logging.String("command", cmd.MessageName()),
		logging.Duration("elapsed", time.Since(start)),
		logging.Int("new_messages", len(collected)))
	return result, collected, nil
}

func (b *MessageBus) handleEvent(ctx context.Context, evt events.Event) []domain.Message {
	var out []domain.Message
	for _, h := range b.registry.eventHandlers(evt) {
		var collected []domain.Message
		final := func(ctx context.Context, msg domain.Message) (any, error) {
			_, msgs, err := unitofwork.Run(ctx, b.uow, func(ctx context.Context, uow unitofwork.IUnitOfWork) (struct{}, error) {
				return struct{}{}, h.handler(ctx, uow, evt)
			})
			collected = msgs
			return nil, err
		}
		invoke := b.chain(final)

		cfg := b.retry
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			b.logger.Warn(ctx, "event handler failed, retrying",
				logging.String("event", evt.MessageName()),
				logging.String("handler", h.name),
				logging.Int("attempt", attempt),
				logging.Duration("backoff", delay),
				logging.Error(err))
		}
		err := retry.Do(ctx, cfg, func(ctx context.Context, attempt int) error {
			_, err := invoke(ctx, evt)
			return err
		})
		if err != nil {
			b.logger.Error(ctx, "event handler gave up",
				logging.String("event", evt.MessageName()),
				logging.String("handler", h.name),
				logging.String("correlation_id", CorrelationID(ctx)),
				logging.Error(err))
			continue
		}
		out = append(out, collected...)
	}
	return out
}

// chain 由内向外构建中间件链
func (b *MessageBus) chain(final HandlerFunc) HandlerFunc {
	next := final
	for i := len(b.middlewares) - 1; i >= 0; i-- {
		mw := b.middlewares[i]
		inner := next
		next = func(ctx context.Context, msg domain.Message) (any, error) {
			return mw.Handle(ctx, msg, inner)
		}
	}
	return next
}

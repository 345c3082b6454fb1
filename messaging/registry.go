package messaging

import (
	"context"
	"fmt"

	"allocation/domain/commands"
	"allocation/domain/events"
	"allocation/service/unitofwork"
)

// CommandHandler 命令处理器，在单个工作单元内执行，返回值交给调用方
type CommandHandler func(ctx context.Context, uow unitofwork.IUnitOfWork, cmd commands.Command) (any, error)

// EventHandler 事件处理器，在独立工作单元内执行
type EventHandler func(ctx context.Context, uow unitofwork.IUnitOfWork, evt events.Event) error

// CommandHandlerOf 将具体命令类型的处理器适配为 CommandHandler
func CommandHandlerOf[C commands.Command](fn func(ctx context.Context, uow unitofwork.IUnitOfWork, cmd C) (any, error)) CommandHandler {
	return func(ctx context.Context, uow unitofwork.IUnitOfWork, cmd commands.Command) (any, error) {
		typed, ok := cmd.(C)
		if !ok {
			return nil, fmt.Errorf("command %s: unexpected type %T", cmd.MessageName(), cmd)
		}
		return fn(ctx, uow, typed)
	}
}

// EventHandlerOf 将具体事件类型的处理器适配为 EventHandler
func EventHandlerOf[E events.Event](fn func(ctx context.Context, uow unitofwork.IUnitOfWork, evt E) error) EventHandler {
	return func(ctx context.Context, uow unitofwork.IUnitOfWork, evt events.Event) error {
		typed, ok := evt.(E)
		if !ok {
			return fmt.Errorf("event %s: unexpected type %T", evt.MessageName(), evt)
		}
		return fn(ctx, uow, typed)
	}
}

type namedEventHandler struct {
	name    string
	handler EventHandler
}

// Registry 静态处理器注册表，在启动时一次性构建
type Registry struct {
	commands map[string]CommandHandler
	events   map[string][]namedEventHandler
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]CommandHandler),
		events:   make(map[string][]namedEventHandler),
	}
}

// RegisterCommand 注册命令处理器；每个命令只能有一个处理器
func (r *Registry) RegisterCommand(cmd commands.Command, h CommandHandler) error {
	name := cmd.MessageName()
	if _, exists := r.commands[name]; exists {
		return busError(ErrCodeHandlerExists, name)
	}
	r.commands[name] = h
	return nil
}

// RegisterEvent 追加事件处理器；同一事件的处理器按注册顺序执行
func (r *Registry) RegisterEvent(evt events.Event, handlerName string, h EventHandler) {
	name := evt.MessageName()
	r.events[name] = append(r.events[name], namedEventHandler{name: handlerName, handler: h})
}

func (r *Registry) commandHandler(cmd commands.Command) (CommandHandler, bool) {
	h, ok := r.commands[cmd.MessageName()]
	return h, ok
}

func (r *Registry) eventHandlers(evt events.Event) []namedEventHandler {
	return r.events[evt.MessageName()]
}

// EventHandlerNames 返回事件的处理器名称，按执行顺序
func (r *Registry) EventHandlerNames(evt events.Event) []string {
	hs := r.eventHandlers(evt)
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.name)
	}
	return out
}

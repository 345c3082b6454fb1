// Package server 进程生命周期编排：配置 → 依赖 → 后台任务 → 主服务 → 信号 → 关闭
package server

import (
	"context"
	"fmt"
	"os/signal"
	"sync/atomic"

	"allocation/logging"
)

// IServer 应用需实现的生命周期步骤
type IServer interface {
	Name() string

	// LoadConfig 读取配置文件与环境变量
	LoadConfig() error

	// SetupDependencies 打开存储、装配总线与入口，ctx 带启动超时
	SetupDependencies(ctx context.Context) error

	// StartBackgroundTasks 启动消费者等非阻塞任务，ctx 在关闭时取消
	StartBackgroundTasks(ctx context.Context) error

	// Run 阻塞运行主服务，ctx 取消时应尽快返回
	Run(ctx context.Context) error

	// Shutdown 释放资源，ctx 带关闭超时
	Shutdown(ctx context.Context) error
}

// Engine 按固定顺序驱动 IServer
type Engine struct {
	server  IServer
	options *Options
	state   atomic.Int32
	logger  logging.Logger
}

// NewEngine 创建引擎；server.Name() 非空时作为默认名称
func NewEngine(server IServer, opts ...Option) *Engine {
	options := DefaultOptions()
	if name := server.Name(); name != "" {
		options.Name = name
	}
	for _, o := range opts {
		o(options)
	}
	return &Engine{
		server:  server,
		options: options,
		logger:  logging.ComponentLogger("server").WithFields(logging.String("app", options.Name)),
	}
}

// State 当前状态
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

func (e *Engine) fail(err error) error {
	e.setState(StateError)
	return err
}

// Start 执行完整生命周期，直到 Run 返回、收到信号或 parent 取消
func (e *Engine) Start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	if len(e.options.Signals) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, e.options.Signals...)
		defer stop()
	}

	e.logger.Info(ctx, "starting", logging.String("version", e.options.Version))
	e.setState(StateInitializing)
	if err := e.server.LoadConfig(); err != nil {
		return e.fail(fmt.Errorf("failed to load config: %w", err))
	}

	setupCtx, setupCancel := context.WithTimeout(ctx, e.options.StartupTimeout)
	err := e.server.SetupDependencies(setupCtx)
	setupCancel()
	if err != nil {
		e.setState(StateError)
		e.shutdown()
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	e.setState(StatePrepared)

	for _, hook := range e.options.OnBeforeStart {
		if err := hook(ctx); err != nil {
			e.setState(StateError)
			e.shutdown()
			return fmt.Errorf("before start hook failed: %w", err)
		}
	}

	if err := e.server.StartBackgroundTasks(ctx); err != nil {
		e.setState(StateError)
		e.shutdown()
		return fmt.Errorf("failed to start background tasks: %w", err)
	}

	e.setState(StateRunning)
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.server.Run(ctx)
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		if runErr != nil {
			e.logger.Error(ctx, "server stopped with error", logging.Error(runErr))
		} else {
			e.logger.Info(ctx, "server stopped")
		}
	case <-ctx.Done():
		e.logger.Info(context.Background(), "shutdown requested", logging.Error(context.Cause(ctx)))
	}
	cancel()

	if err := e.shutdown(); err != nil {
		return err
	}
	if runErr != nil {
		e.setState(StateError)
		return fmt.Errorf("server execution error: %w", runErr)
	}
	e.setState(StateStopped)
	e.logger.Info(context.Background(), "shutdown complete")
	return nil
}

func (e *Engine) shutdown() error {
	failed := e.State() == StateError
	if !failed {
		e.setState(StateStopping)
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.options.ShutdownTimeout)
	defer cancel()

	if err := e.server.Shutdown(ctx); err != nil {
		e.setState(StateError)
		e.logger.Error(ctx, "shutdown error", logging.Error(err))
		return err
	}
	for _, hook := range e.options.OnAfterStop {
		if err := hook(ctx); err != nil {
			e.logger.Warn(ctx, "after stop hook failed", logging.Error(err))
		}
	}
	if failed {
		e.setState(StateError)
	}
	return nil
}

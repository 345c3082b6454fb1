package server

import (
	"context"
	"os"
	"syscall"
	"time"
)

// State 进程生命周期状态
type State int32

const (
	StatePending State = iota
	StateInitializing
	// StatePrepared 依赖已就绪，等待启动
	StatePrepared
	StateRunning
	// StateStopping 正在优雅关闭
	StateStopping
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateInitializing:
		return "Initializing"
	case StatePrepared:
		return "Prepared"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Hook 生命周期回调，ctx 带超时
type Hook func(ctx context.Context) error

// Options 引擎选项
type Options struct {
	Name            string
	Version         string
	StartupTimeout  time.Duration
	ShutdownTimeout time.Duration
	// Signals 触发优雅关闭的信号，为空时只响应 ctx 取消与 Run 返回
	Signals []os.Signal

	OnBeforeStart []Hook
	OnAfterStop   []Hook
}

// Option 选项修改函数
type Option func(*Options)

// DefaultOptions 默认选项：30s 启动超时、10s 关闭超时，监听 SIGINT/SIGTERM
func DefaultOptions() *Options {
	return &Options{
		Name:            "allocation",
		Version:         "0.0.0",
		StartupTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Signals:         []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

func WithVersion(version string) Option {
	return func(o *Options) { o.Version = version }
}

func WithStartupTimeout(t time.Duration) Option {
	return func(o *Options) { o.StartupTimeout = t }
}

func WithShutdownTimeout(t time.Duration) Option {
	return func(o *Options) { o.ShutdownTimeout = t }
}

// WithSignals 替换关闭信号集合；不传参数表示不监听信号
func WithSignals(sigs ...os.Signal) Option {
	return func(o *Options) { o.Signals = sigs }
}

// WithBeforeStart 在后台任务启动前执行
func WithBeforeStart(fn Hook) Option {
	return func(o *Options) { o.OnBeforeStart = append(o.OnBeforeStart, fn) }
}

// WithAfterStop 在 Shutdown 成功后执行，失败只记录日志
func WithAfterStop(fn Hook) Option {
	return func(o *Options) { o.OnAfterStop = append(o.OnAfterStop, fn) }
}

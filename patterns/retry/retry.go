// Package retry 提供显式的重试组合子
package retry

import (
	"context"
	"time"
)

// Operation 可重试的操作函数类型，attempt 从 1 开始
type Operation func(ctx context.Context, attempt int) error

// BackoffFunc 返回第 attempt 次失败后的等待时间
type BackoffFunc func(attempt int) time.Duration

// Config 重试配置
type Config struct {
	MaxAttempts   int           `yaml:"max_attempts"`   // 最大尝试次数（包括首次）
	InitialDelay  time.Duration `yaml:"initial_delay"`  // 初始退避延迟
	BackoffFactor float64       `yaml:"backoff_factor"` // 退避倍数
	MaxDelay      time.Duration `yaml:"max_delay"`      // 最大延迟

	// Backoff 非空时取代指数退避
	Backoff BackoffFunc `yaml:"-"`

	// OnRetry 每次失败且仍会重试时回调
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// DefaultConfig 事件处理器的默认重试策略：3 次尝试，10ms 起指数退避，上限 1s
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  10 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      time.Second,
	}
}

// Exponential 构造指数退避函数
func Exponential(initial time.Duration, factor float64, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		delay := float64(initial)
		for i := 1; i < attempt; i++ {
			delay *= factor
			if max > 0 && time.Duration(delay) >= max {
				return max
			}
		}
		if max > 0 && time.Duration(delay) > max {
			return max
		}
		return time.Duration(delay)
	}
}

func (c Config) backoff() BackoffFunc {
	if c.Backoff != nil {
		return c.Backoff
	}
	return Exponential(c.InitialDelay, c.BackoffFactor, c.MaxDelay)
}

// Do 执行带重试的操作，返回 nil 或最后一次的错误
func Do(ctx context.Context, cfg Config, op Operation) error {
	_, err := DoValue(ctx, cfg, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, op(ctx, attempt)
	})
	return err
}

// DoValue 执行带返回值的重试操作
//
//	n, err := retry.DoValue(ctx, retry.DefaultConfig(), func(ctx context.Context, attempt int) (int, error) {
//	    return load(ctx)
//	})
func DoValue[T any](ctx context.Context, cfg Config, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.backoff()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		delay := backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}

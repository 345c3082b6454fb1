package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"allocation/bootstrap"
	"allocation/config"
	"allocation/entrypoints/consumer"
	"allocation/entrypoints/httpapi"
	"allocation/logging"
)

// allocationService 实现 server.IServer：HTTP 入口与入站消费者共用一条总线
type allocationService struct {
	configPath string
	lookupEnv  func(string) (string, bool)

	cfg  config.Config
	app  *bootstrap.App
	http *http.Server
	// listener 非空时 Run 使用它而不是 cfg.HTTP.Addr
	listener net.Listener
}

func newAllocationService(configPath string) *allocationService {
	return &allocationService{configPath: configPath, lookupEnv: os.LookupEnv}
}

func (s *allocationService) Name() string { return "allocation" }

func (s *allocationService) LoadConfig() error {
	cfg, err := config.LoadWithEnv(s.configPath, s.lookupEnv)
	if err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

func (s *allocationService) SetupDependencies(ctx context.Context) error {
	app, err := bootstrap.Build(ctx, s.cfg)
	if err != nil {
		return err
	}
	s.app = app

	if s.cfg.Transport.Consume {
		if err := consumer.New(app.Bus).Subscribe(app.Transport); err != nil {
			return err
		}
	}

	api := httpapi.NewServer(httpapi.Config{
		ServiceName: s.cfg.Service.Name,
		Tracing:     s.cfg.Tracing.Enabled,
	}, app.Bus, app.Views)
	s.http = httpapi.NewHTTPServer(s.cfg.HTTP.Addr, api.Handler(), s.cfg.HTTP.ReadTimeout, s.cfg.HTTP.WriteTimeout)
	return nil
}

func (s *allocationService) StartBackgroundTasks(ctx context.Context) error {
	if err := s.app.Transport.Start(ctx); err != nil {
		return fmt.Errorf("start %s transport: %w", s.cfg.Transport.Kind, err)
	}
	return nil
}

// Run HTTP 服务与 ctx 监听在同一 errgroup 中，任一方结束即整体返回
func (s *allocationService) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.ComponentLogger("http").Info(gctx, "listening", logging.String("addr", s.addr()))
		var err error
		if s.listener != nil {
			err = s.http.Serve(s.listener)
		} else {
			err = s.http.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *allocationService) addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.HTTP.Addr
}

// Shutdown 先停 HTTP，再停传输，最后释放存储与追踪
func (s *allocationService) Shutdown(ctx context.Context) error {
	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.app != nil {
		if s.app.Transport != nil && s.app.Transport.Stats().Running {
			if err := s.app.Transport.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close transport: %w", err))
			}
		}
		if err := s.app.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"allocation/adapters/notifications"
	"allocation/adapters/publisher"
	"allocation/adapters/readmodel"
	"allocation/config"
	"allocation/logging"
	"allocation/messaging"
	"allocation/messaging/middleware"
	"allocation/messaging/transport/kafka"
	"allocation/messaging/transport/memory"
	"allocation/messaging/transport/natsjetstream"
	"allocation/messaging/transport/redisstreams"
	synctransport "allocation/messaging/transport/sync"
	"allocation/observability"
	"allocation/service/unitofwork"
	"allocation/storage/database"
	"allocation/storage/database/basic"
	"allocation/storage/schema"
)

// App 按配置装配好的运行时组件
type App struct {
	Config    config.Config
	Bus       *messaging.MessageBus
	Views     readmodel.IReader
	Cache     *readmodel.CachedReader
	Transport messaging.Transport
	DB        database.IDatabase

	closers []func(context.Context) error
}

// Build 依次初始化日志、追踪、存储、传输与总线；任一步失败会释放已创建的资源
func Build(ctx context.Context, cfg config.Config) (app *App, err error) {
	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close(ctx)
			app = nil
		}
	}()

	zl, err := logging.NewZapLogger(cfg.Service.Mode, logging.ParseLevel(cfg.Service.LogLevel))
	if err != nil {
		return app, fmt.Errorf("init logger: %w", err)
	}
	logging.SetLogger(zl.WithFields(logging.String("service", cfg.Service.Name)))
	app.closers = append(app.closers, func(context.Context) error { _ = zl.Sync(); return nil })

	tracingOpts := observability.TracingOptions{ServiceName: cfg.Service.Name, Enabled: cfg.Tracing.Enabled}
	if cfg.Tracing.Stdout {
		tracingOpts.Writer = os.Stdout
	}
	_, shutdownTracing, err := observability.InitTracing(ctx, tracingOpts)
	if err != nil {
		return app, err
	}
	app.closers = append(app.closers, shutdownTracing)

	uow, reader, err := app.openStorage(ctx, cfg.Database)
	if err != nil {
		return app, err
	}
	app.Cache = readmodel.NewCachedReader(reader, cfg.Cache)
	app.Views = app.Cache

	transport, err := NewTransport(cfg.Transport)
	if err != nil {
		return app, err
	}
	app.Transport = transport

	retryCfg := cfg.Retry
	app.Bus, err = NewBus(Dependencies{
		UoW:              uow,
		Notifier:         notifications.New(cfg.Notifications),
		Publisher:        publisher.NewChannelPublisher(transport, nil),
		Cache:            app.Cache,
		StockDestination: cfg.Notifications.StockDestination,
		Retry:            &retryCfg,
		Middlewares: []messaging.IMiddleware{
			middleware.NewTracingMiddleware(nil),
			middleware.NewValidationMiddleware(nil),
		},
	})
	if err != nil {
		return app, err
	}
	logging.ComponentLogger("bootstrap").Info(ctx, "application assembled",
		logging.String("db_driver", cfg.Database.Driver),
		logging.String("transport", cfg.Transport.Kind))
	return app, nil
}

func (a *App) openStorage(ctx context.Context, cfg database.DBConfig) (unitofwork.IUnitOfWorkFactory, readmodel.IReader, error) {
	if cfg.Driver == "memory" {
		f := unitofwork.NewMemoryFactory()
		return f, f.View, nil
	}
	db, err := basic.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	a.DB = db
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })
	if err := schema.Ensure(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return unitofwork.NewSQLFactory(db, nil), readmodel.NewSQLReader(db), nil
}

// NewTransport 按类型创建外部通道传输（未启动）
func NewTransport(cfg config.TransportConfig) (messaging.Transport, error) {
	switch cfg.Kind {
	case config.TransportSync, "":
		return synctransport.NewSyncTransport(), nil
	case config.TransportMemory:
		return memory.NewMemoryTransport(cfg.Memory.QueueSize, cfg.Memory.Workers), nil
	case config.TransportRedis:
		return redisstreams.NewTransport(cfg.Redis)
	case config.TransportNATS:
		return natsjetstream.NewTransport(cfg.NATS), nil
	case config.TransportKafka:
		return kafka.NewTransport(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Kind)
	}
}

// Close 逆序释放资源，错误合并返回
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Package httpapi 分配服务的 HTTP 入口：请求体转换为命令交给总线，查询直接读投影
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"allocation/adapters/readmodel"
	"allocation/domain"
	"allocation/logging"
	"allocation/messaging"
)

// HeaderCorrelationID 调用方可透传的关联 ID 请求头
const HeaderCorrelationID = "X-Correlation-ID"

// ICommandBus 总线的最小依赖面
type ICommandBus interface {
	Handle(ctx context.Context, msg domain.Message) ([]any, error)
}

// Config 路由配置
type Config struct {
	ServiceName string
	// Tracing 为 true 时挂载 otelgin 中间件
	Tracing bool
}

// Server 持有路由与依赖
type Server struct {
	engine *gin.Engine
	bus    ICommandBus
	views  readmodel.IReader
	logger logging.Logger
}

// NewServer 创建 gin 引擎并注册全部路由
func NewServer(cfg Config, bus ICommandBus, views readmodel.IReader) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.Tracing {
		engine.Use(otelgin.Middleware(cfg.ServiceName))
	}
	engine.Use(correlation())

	s := &Server{
		engine: engine,
		bus:    bus,
		views:  views,
		logger: logging.ComponentLogger("httpapi"),
	}
	s.routes()
	return s
}

// Handler 返回可挂到 http.Server 的处理器
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.healthz)
	s.engine.POST("/allocate", s.allocate)
	s.engine.DELETE("/allocate", s.deallocate)
	s.engine.GET("/allocations/:orderid", s.allocations)
	s.engine.POST("/batches", s.addBatch)
	s.engine.PATCH("/batches/:ref", s.changeBatchQuantity)
}

// NewHTTPServer 包装为带超时的 http.Server
func NewHTTPServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}
}

// correlation 读取或生成关联 ID，写回响应头
func correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader(HeaderCorrelationID); id != "" {
			ctx = messaging.WithCorrelationID(ctx, id)
		} else {
			ctx = messaging.EnsureCorrelationID(ctx)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderCorrelationID, messaging.CorrelationID(ctx))
		c.Next()
	}
}

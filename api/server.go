// Package api exposes the engine over HTTP with gin, plus a websocket
// stream of engine events.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rustyeddy/levtrader/autotrade"
	"github.com/rustyeddy/levtrader/engine"
	"github.com/rustyeddy/levtrader/events"
)

// TraderHeader carries the caller identity. It is trusted as is.
const TraderHeader = "X-Trader"

type Server struct {
	engine *engine.Engine
	auto   *autotrade.Trader
	feed   *events.Memory
	log    *zap.Logger

	router *gin.Engine
	srv    *http.Server
}

// New builds the router. feed may be nil, in which case the events
// endpoint is not registered.
func New(addr string, e *engine.Engine, auto *autotrade.Trader, feed *events.Memory, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine: e,
		auto:   auto,
		feed:   feed,
		log:    log.Named("api"),
		router: gin.New(),
	}
	s.router.Use(gin.Recovery(), s.accessLog())
	s.RegisterRoutes(s.router)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/prices/:asset", s.GetPrice)
		api.PUT("/prices/:asset", s.PutPrice)

		api.POST("/deposits", s.PostDeposit)
		api.POST("/swaps", s.PostSwap)

		api.POST("/positions", s.OpenPosition)
		api.GET("/positions/:id", s.GetPosition)
		api.POST("/positions/:id/close", s.ClosePosition)

		api.GET("/traders/:trader/positions", s.TraderPositions)
		api.GET("/traders/:trader/transactions", s.TraderTransactions)
		api.GET("/traders/:trader/stats", s.TraderStats)
		api.GET("/stats", s.GlobalStats)

		api.POST("/auto/trade", s.AutoTrade)
		api.POST("/auto/close", s.AutoClose)

		if s.feed != nil {
			api.GET("/events", s.Events)
		}
	}
	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
}

// Handler is the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens in the background. It returns once the socket is bound.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.log.Info("http listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http serve", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// Package api 可选的 HTTP 控制接口：查看 / 修改价格水平，查询监控状态。
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betbot/levelalarm/internal/domain"
	"github.com/betbot/levelalarm/internal/levels"
	"github.com/betbot/levelalarm/internal/metrics"
	"github.com/betbot/levelalarm/internal/monitor"
)

var log = logrus.WithField("module", "api")

const requestIDHeader = "X-Request-ID"

// StatusProvider 监控状态（*monitor.Monitor）
type StatusProvider interface {
	Status() monitor.Status
}

// LastKnown 最近行情（*exchange.Cached）
type LastKnown interface {
	LastKnown() (domain.Tick, bool)
}

// Server HTTP 控制接口
type Server struct {
	store  *levels.Store
	status StatusProvider
	last   LastKnown
}

// New status、last 可以为 nil
func New(store *levels.Store, status StatusProvider, last LastKnown) *Server {
	return &Server{store: store, status: status, last: last}
}

// Router gin 路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.Any("/debug/*path", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)

	lv := api.Group("/levels")
	lv.GET("", s.handleLevelsList)
	lv.POST("", s.handleLevelsAdd)
	lv.DELETE("", s.handleLevelsClear)
	lv.POST("/save", s.handleLevelsSave)
	lv.DELETE("/:value", s.handleLevelRemove)

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
		}).Debug("http")
	}
}

func writeError(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// Serve 监听 addr 直到 ctx 结束，然后在 timeout 内优雅关闭
func Serve(ctx context.Context, addr string, h http.Handler, timeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	log.Infof("HTTP 控制接口监听 %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

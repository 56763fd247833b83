package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"webhook_bot/internal/modules/config"
	"webhook_bot/internal/modules/server/service"
	"webhook_bot/internal/runner"
	"webhook_bot/pkg/logger"
)

type Config struct {
	Addr string // например ":8000"
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.Port)}
}

func NewHandlers(engine *runner.Engine, state *service.State, cfg *config.Config) *service.Handlers {
	return service.NewHandlers(engine, state, service.Info{
		Service:          cfg.Service.Name,
		WalletConfigured: cfg.HasCredentials(),
		DefaultCoin:      cfg.Trading.DefaultCoin,
	})
}

func NewRouter(h *service.Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), service.RequestID())

	r.POST("/webhook", h.Webhook)
	r.GET("/", h.Health)
	r.GET("/health", h.Health)
	r.GET("/livez", h.Livez)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func RunHTTP(lc fx.Lifecycle, cfg Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			logger.Info("[HTTP] listening on %s", cfg.Addr)
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("[HTTP] serve: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("server",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewHandlers,
			NewRouter,
		),
		fx.Invoke(RunHTTP),
	)
}

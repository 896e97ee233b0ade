package handlers

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Logger   *slog.Logger
	Webhooks *WebhookHandler
	Gatherer prometheus.Gatherer
	Checks   map[string]HealthCheck
	// TrustedProxies may set X-Forwarded-For. When empty the client IP is
	// always the remote address.
	TrustedProxies []string
}

func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(Recovery(logger), RequestLogger(logger))

	router.POST("/webhooks/:provider", deps.Webhooks.Handle)
	router.GET("/healthz", Healthz(deps.Checks))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	return router, nil
}

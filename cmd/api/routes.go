package main

import (
	"database/sql"
	"net/http"
	"time"

	"collections-dialer/internal/config"
	"collections-dialer/internal/httpapi"
	"collections-dialer/internal/telephony"
	"collections-dialer/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	cfg      config.Config
	authMW   gin.HandlerFunc
	handlers httpapi.Handlers
	webhook  telephony.InboundWebhookHandler
	db       *sql.DB
	rdb      *redis.Client
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx := c.Request.Context()
		if d.db != nil {
			if err := utils.HealthCheck(ctx, d.db, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "dependency": "postgres"})
				return
			}
		}
		if d.rdb != nil {
			if err := d.rdb.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "dependency": "redis"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Softphone/PBX webhooks. Protected by DIALER_WEBHOOK_TOKEN when set.
	r.POST("/webhooks/softphone/incoming", d.webhook.HandleInboundCall)

	r.POST("/v1/auth/refresh", d.handlers.Refresh)

	// Token issuance without credentials is a development aid only.
	if !d.cfg.IsProduction() {
		r.POST("/v1/auth/login", d.handlers.Login)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(d.authMW)
	httpapi.Register(v1, d.handlers)
}

package server

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/internal/service"
)

type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

type Catalog interface {
	List(ctx context.Context) ([]gateway.CatalogEntry, error)
	Invalidate()
}

type Options struct {
	AllowedOrigins  []string
	ChargeRateLimit float64
}

type Server struct {
	charges    service.ChargeService
	webhooks   service.WebhookService
	lostOrders service.LostOrderService
	catalog    Catalog
	health     HealthChecker
	logger     *zap.SugaredLogger
	opts       Options
}

func New(
	charges service.ChargeService,
	webhooks service.WebhookService,
	lostOrders service.LostOrderService,
	catalog Catalog,
	health HealthChecker,
	logger *zap.SugaredLogger,
	opts Options,
) *Server {
	return &Server{
		charges:    charges,
		webhooks:   webhooks,
		lostOrders: lostOrders,
		catalog:    catalog,
		health:     health,
		logger:     logger,
		opts:       opts,
	}
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(RequestID(), Logger(s.logger), Recovery(s.logger))

	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", HeaderRequestID},
			ExposeHeaders:    []string{HeaderRequestID},
			AllowCredentials: true,
		}))
	}

	r.GET("/health", s.healthHandler)
	r.POST("/orders/charge", RateLimit(s.opts.ChargeRateLimit), s.chargeHandler)
	r.POST("/webhooks/:gateway", s.webhookHandler)

	admin := r.Group("/admin")
	{
		admin.GET("/orders/lost", s.lostOrdersHandler)
		admin.GET("/gateways", s.gatewaysHandler)
		admin.POST("/gateways/invalidate", s.invalidateGatewaysHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Type: typeDanger, Title: "Not found", Message: "No such endpoint."})
	})
	return r
}

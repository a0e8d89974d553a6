package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"payment-orchestrator/internal/apperr"
	"payment-orchestrator/internal/service"
)

const maxWebhookBody = 1 << 20

func (s *Server) healthHandler(c *gin.Context) {
	stats := s.health.Health(c.Request.Context())
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func (s *Server) chargeHandler(c *gin.Context) {
	var req service.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.InvalidErr("The given data was invalid.", map[string]string{"body": err.Error()}))
		return
	}

	out, err := s.charges.Charge(c.Request.Context(), GetRequestID(c), req)
	if err != nil {
		fail(c, err)
		return
	}

	data := gin.H{"payment_order_id": out.OrderID}
	for k, v := range out.Data {
		data[k] = v
	}
	success(c, "Payment created", "Continue with the payment provider.", data)
}

func (s *Server) webhookHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		fail(c, apperr.GatewayErr("Unreadable body.", err))
		return
	}
	if len(body) > maxWebhookBody {
		fail(c, apperr.GatewayErr("Payload too large.", errors.New("webhook body over limit")))
		return
	}

	res, err := s.webhooks.Handle(c.Request.Context(), c.Param("gateway"), body, c.Request.Header)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, "Webhook processed", res.Message, gin.H{
		"payment_order_id":  res.PaymentOrderID,
		"payment_completed": res.PaymentCompleted,
	})
}

func (s *Server) lostOrdersHandler(c *gin.Context) {
	orders, err := s.lostOrders.List(c.Request.Context(), c.Query("gateway"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, "Lost orders", "", orders)
}

func (s *Server) gatewaysHandler(c *gin.Context) {
	entries, err := s.catalog.List(c.Request.Context())
	if err != nil {
		fail(c, apperr.Wrap(err))
		return
	}
	success(c, "Gateways", "", entries)
}

func (s *Server) invalidateGatewaysHandler(c *gin.Context) {
	s.catalog.Invalidate()
	success(c, "Gateways", "Catalog cache cleared.", nil)
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"payment-orchestrator/internal/apperr"
)

const (
	typeSuccess = "success"
	typeDanger  = "danger"
)

type envelope struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func success(c *gin.Context, title, message string, data any) {
	c.JSON(http.StatusOK, envelope{Type: typeSuccess, Title: title, Message: message, Data: data})
}

// fail records err for the access log and writes the danger envelope.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)

	status := apperr.HTTPStatus(err)
	body := envelope{
		Type:      typeDanger,
		Title:     title(err),
		Message:   apperr.PublicMessage(err),
		RequestID: GetRequestID(c),
	}
	if ae, isApp := apperr.As(err); isApp && len(ae.Fields) > 0 {
		body.Data = gin.H{"fields": ae.Fields}
	}
	c.AbortWithStatusJSON(status, body)
}

func title(err error) string {
	ae, isApp := apperr.As(err)
	if !isApp {
		return "Error"
	}
	switch ae.Kind {
	case apperr.Invalid:
		return "Validation failed"
	case apperr.Gateway:
		return "Payment gateway error"
	case apperr.NotFound:
		return "Not found"
	default:
		return "Error"
	}
}

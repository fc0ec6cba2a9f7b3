package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/MSalah73/zero2prod/internal/idempotency"
	"github.com/MSalah73/zero2prod/internal/publish"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db      *gorm.DB
	publish *publish.Service
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, p *publish.Service) *Handlers {
	return &Handlers{db: db, publish: p}
}

// publishForm mirrors the admin newsletter form fields.
type publishForm struct {
	Title          string `form:"title"`
	HTMLContent    string `form:"html_content"`
	TextContent    string `form:"text_content"`
	IdempotencyKey string `form:"idempotency_key"`
}

// PublishNewsletter handles a publish command. The caller identity arrives
// on the X-User-Id header; session handling belongs to an upstream proxy.
// Duplicate submissions receive the contents of the saved response
// verbatim.
func (h *Handlers) PublishNewsletter(c *gin.Context) {
	userID := c.GetHeader("X-User-Id")
	if userID == "" {
		c.String(http.StatusBadRequest, "missing X-User-Id header")
		return
	}

	var form publishForm
	if err := c.ShouldBind(&form); err != nil {
		c.String(http.StatusBadRequest, "malformed publish form")
		return
	}

	response, err := h.publish.Publish(c.Request.Context(), userID, form.IdempotencyKey, publish.Issue{
		Title:       form.Title,
		HTMLContent: form.HTMLContent,
		TextContent: form.TextContent,
	})
	if err != nil {
		switch {
		case errors.Is(err, idempotency.ErrInvalidKey), errors.Is(err, publish.ErrEmptyField):
			c.String(http.StatusBadRequest, err.Error())
		case errors.Is(err, idempotency.ErrConflictInProgress):
			c.String(http.StatusConflict, err.Error())
		default:
			logrus.WithError(err).Error("Publish command failed")
			c.String(http.StatusInternalServerError, "internal server error")
		}
		return
	}

	for _, header := range response.Headers {
		c.Writer.Header().Set(header.Name, header.Value)
	}
	c.Data(response.StatusCode, c.Writer.Header().Get("Content-Type"), response.Body)
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	status := "ok"
	database := "ok"

	if err := h.db.Raw("SELECT 1").Error; err != nil {
		status = "error"
		database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	statusCode := http.StatusOK
	if status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"database":  database,
		"timestamp": time.Now(),
	})
}

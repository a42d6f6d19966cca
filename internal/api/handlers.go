package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/alerts"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/audit"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/errors"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/validation"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/gin-gonic/gin"
)

// ==========================
// 1. Dependencies
// ==========================

// AlertService is the part of alerts.Service the API calls.
type AlertService interface {
	CreateAlert(ctx context.Context, in alerts.CreateAlertInput) (*models.Alert, error)
	SendAlert(ctx context.Context, alertID string) (*models.Alert, error)
	CancelAlert(ctx context.Context, alertID string) (*models.Alert, error)
	GetAlert(ctx context.Context, alertID string) (*models.Alert, error)
	ListAcknowledgments(ctx context.Context, alertID string) ([]models.Acknowledgment, error)
	Acknowledge(ctx context.Context, alertID, userID, notes string) (alerts.AckResult, error)
	RegisterPushToken(ctx context.Context, userID, raw string) (models.PushToken, error)
}

// DeliveryLog reads back audited delivery attempts.
type DeliveryLog interface {
	Deliveries(ctx context.Context, alertID string, size int) ([]audit.Record, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ AlertService = (*alerts.Service)(nil)

type Handlers struct {
	service    AlertService
	deliveries DeliveryLog
	events     EventSource
	checks     map[string]Pinger
	heartbeat  time.Duration
	logger     logger.Logger
}

type Option func(*Handlers)

func WithDeliveryLog(d DeliveryLog) Option { return func(h *Handlers) { h.deliveries = d } }

func WithEventSource(e EventSource) Option { return func(h *Handlers) { h.events = e } }

// WithReadinessCheck adds a named dependency to /ready.
func WithReadinessCheck(name string, p Pinger) Option {
	return func(h *Handlers) { h.checks[name] = p }
}

// WithHeartbeat sets the SSE keep-alive interval.
func WithHeartbeat(d time.Duration) Option { return func(h *Handlers) { h.heartbeat = d } }

func NewHandlers(service AlertService, log logger.Logger, opts ...Option) *Handlers {
	h := &Handlers{
		service:   service,
		checks:    make(map[string]Pinger),
		heartbeat: 25 * time.Second,
		logger:    log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ==========================
// 2. Health
// ==========================

func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handlers) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

// ==========================
// 3. Alerts
// ==========================

func (h *Handlers) CreateAlert(c *gin.Context) {
	var in alerts.CreateAlertInput
	if !h.bind(c, createAlertSchema, &in) {
		return
	}

	alert, err := h.service.CreateAlert(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handlers) GetAlert(c *gin.Context) {
	alert, err := h.service.GetAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handlers) SendAlert(c *gin.Context) {
	alert, err := h.service.SendAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handlers) CancelAlert(c *gin.Context) {
	alert, err := h.service.CancelAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// ==========================
// 4. Acknowledgments
// ==========================

type acknowledgeRequest struct {
	UserID string `json:"userId"`
	Notes  string `json:"notes"`
}

// Acknowledge answers 201 for a new acknowledgment and 200 when the user had
// already acknowledged.
func (h *Handlers) Acknowledge(c *gin.Context) {
	var req acknowledgeRequest
	if !h.bind(c, acknowledgeSchema, &req) {
		return
	}

	res, err := h.service.Acknowledge(c.Request.Context(), c.Param("id"), req.UserID, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h *Handlers) ListAcknowledgments(c *gin.Context) {
	acks, err := h.service.ListAcknowledgments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(acks), "acknowledgments": acks})
}

func (h *Handlers) ListDeliveries(c *gin.Context) {
	alertID := c.Param("id")
	if _, err := h.service.GetAlert(c.Request.Context(), alertID); err != nil {
		h.respondError(c, err)
		return
	}

	size, _ := strconv.Atoi(c.Query("size"))
	records, err := h.deliveries.Deliveries(c.Request.Context(), alertID, size)
	if err != nil {
		h.respondError(c, errors.NewDatabaseQueryFailedError("list deliveries", err))
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"total": len(records), "deliveries": records})
}

// ==========================
// 5. Users
// ==========================

type pushTokenRequest struct {
	Token string `json:"token"`
}

func (h *Handlers) RegisterPushToken(c *gin.Context) {
	var req pushTokenRequest
	if !h.bind(c, pushTokenSchema, &req) {
		return
	}

	token, err := h.service.RegisterPushToken(c.Request.Context(), c.Param("id"), req.Token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": c.Param("id"), "pushToken": token})
}

// ==========================
// 6. Helpers
// ==========================

// bind validates the body against schema before decoding it into dst. On
// failure the 400 response has already been written.
func (h *Handlers) bind(c *gin.Context, schema *validation.Schema, dst interface{}) bool {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.respondError(c, errors.NewValidationFailedError("unreadable request body"))
		return false
	}

	result := schema.ValidateJSON(body)
	if !result.Valid {
		stdErr := errors.NewValidationFailedError("request body does not match schema").
			WithMetadata("errors", result.Errors)
		h.respondError(c, stdErr)
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		h.respondError(c, errors.NewValidationFailedError(err.Error()))
		return false
	}
	return true
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	stdErr := errors.AsStandardError(err)
	status := errors.HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"path":      c.FullPath(),
		"errorCode": string(stdErr.Code),
		"requestId": c.GetString("requestId"),
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed", fields)
	} else {
		h.logger.Debug("request rejected", fields)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": stdErr})
}

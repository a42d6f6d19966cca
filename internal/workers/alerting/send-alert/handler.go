package sendalert

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/alerts"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/errors"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/metrics"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "send-alert"

// AlertService is the part of alerts.Service the worker drives.
type AlertService interface {
	CreateAlert(ctx context.Context, in alerts.CreateAlertInput) (*models.Alert, error)
	SendAlert(ctx context.Context, alertID string) (*models.Alert, error)
	GetAlert(ctx context.Context, alertID string) (*models.Alert, error)
}

// jobNamespace seeds the alert IDs derived from job keys.
var jobNamespace = uuid.MustParse("4f1c7a52-8a3e-4d0b-9b7e-2c5d6e8f9a10")

// alertIDForJob gives a redelivered job the same alert ID as its first
// delivery.
func alertIDForJob(jobKey string) string {
	return uuid.NewSHA1(jobNamespace, []byte(TaskType+"/"+jobKey)).String()
}

type Handler struct {
	config       *Config
	service      AlertService
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, service AlertService, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		service:      service,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewValidationFailedError(fmt.Sprintf("parse input: %v", err)))
		return
	}
	input.JobKey = strconv.FormatInt(job.Key, 10)

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute sends the named alert, or creates and sends a new one when no
// AlertID is given.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationFailedError("input cannot be nil")
	}

	var (
		alert *models.Alert
		err   error
	)
	id := input.AlertID
	if id != "" {
		alert, err = h.service.SendAlert(ctx, id)
	} else {
		sendNow := true
		if input.JobKey != "" {
			id = alertIDForJob(input.JobKey)
		}
		alert, err = h.service.CreateAlert(ctx, alerts.CreateAlertInput{
			ID:              id,
			Title:           input.Title,
			Message:         input.Message,
			Severity:        input.Severity,
			Channels:        input.Channels,
			Targeting:       input.Targeting,
			CreatedBy:       input.CreatedBy,
			IncidentID:      input.IncidentID,
			SendImmediately: &sendNow,
		})
	}
	if err != nil {
		if alert, err = h.alreadyDispatched(ctx, id, err); err != nil {
			return nil, err
		}
	}

	return &Output{
		AlertID:       alert.ID,
		Status:        alert.Status,
		DeliveryStats: alert.DeliveryStats,
	}, nil
}

// alreadyDispatched turns a lost status transition into success when the
// alert has in fact been dispatched, so a redelivered job completes with
// the stored outcome instead of failing.
func (h *Handler) alreadyDispatched(ctx context.Context, alertID string, err error) (*models.Alert, error) {
	if alertID == "" || !errors.IsCode(err, errors.ErrCodeInvalidStatusTransition) {
		return nil, err
	}

	current, getErr := h.service.GetAlert(ctx, alertID)
	if getErr != nil {
		return nil, err
	}
	if current.Status != models.AlertStatusSent && current.Status != models.AlertStatusFailed {
		return nil, err
	}
	h.logger.Info("alert already dispatched", map[string]interface{}{
		"alertId": alertID,
		"status":  string(current.Status),
	})
	return current, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":  job.Key,
		"alertId": output.AlertID,
		"status":  string(output.Status),
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.AsStandardError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

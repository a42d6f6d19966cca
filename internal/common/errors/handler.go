package errors

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler reports job failures back to Zeebe, either as a failed job
// with retries or as a thrown BPMN error.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError handles any error in a worker job
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := AsStandardError(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	h.logError(job, stdErr, bpmnErr)

	if bpmnErr.Retries > 0 && job.Retries > 0 {
		h.failJobWithRetries(ctx, client, job, bpmnErr)
		return
	}
	h.throwBPMNError(ctx, client, job, bpmnErr)
}

// RetriesFor returns the retry count to report for a failed job: the
// smaller of the remaining job retries and the error's budget.
func RetriesFor(job entities.Job, bpmnErr *BPMNError) int32 {
	retries := int32(bpmnErr.Retries)
	if job.Retries > 0 && job.Retries-1 < retries {
		retries = job.Retries - 1
	}
	if retries < 0 {
		retries = 0
	}
	return retries
}

func (h *ErrorHandler) failJobWithRetries(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(RetriesFor(job, bpmnErr)).
		ErrorMessage(bpmnErr.Message)

	vars, err := cmd.VariablesFromMap(bpmnErr.ToErrorVariables())
	if err != nil {
		_, err = cmd.Send(ctx)
	} else {
		_, err = vars.Send(ctx)
	}
	if err != nil {
		h.logSendFailure(job, "fail", err)
	}
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	vars, err := cmd.VariablesFromMap(bpmnErr.ToErrorVariables())
	if err != nil {
		_, err = cmd.Send(ctx)
	} else {
		_, err = vars.Send(ctx)
	}
	if err != nil {
		h.logSendFailure(job, "throw", err)
	}
}

func (h *ErrorHandler) logError(job entities.Job, stdErr *StandardError, bpmnErr *BPMNError) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"message":          bpmnErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"retries":          bpmnErr.Retries,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})
}

func (h *ErrorHandler) logSendFailure(job entities.Job, command string, err error) {
	h.logger.Error("Failed to report job error", map[string]interface{}{
		"jobKey":  job.Key,
		"command": command,
		"error":   err.Error(),
	})
}

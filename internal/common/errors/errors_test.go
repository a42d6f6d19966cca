package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsStandardError(t *testing.T) {
	assert.Nil(t, AsStandardError(nil))

	notFound := NewAlertNotFoundError("a-1")
	wrapped := fmt.Errorf("load alert: %w", notFound)
	assert.Same(t, notFound, AsStandardError(wrapped))

	internal := AsStandardError(fmt.Errorf("boom"))
	require.NotNil(t, internal)
	assert.Equal(t, ErrCodeInternal, internal.Code)
	assert.Equal(t, "boom", internal.Details)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{ErrCodeInvalidTargeting, http.StatusBadRequest},
		{ErrCodeInvalidPushToken, http.StatusBadRequest},
		{ErrCodeAlertNotFound, http.StatusNotFound},
		{ErrCodeUserNotFound, http.StatusNotFound},
		{ErrCodeInvalidStatusTransition, http.StatusConflict},
		{ErrCodeAlertNotAcknowledgeable, http.StatusConflict},
		{ErrCodeDatabaseQueryFailed, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable database error keeps retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewDatabaseQueryFailedError("load_alert", fmt.Errorf("conn reset")))
		assert.Equal(t, "DATABASE_QUERY_FAILED", bpmn.Code)
		assert.Equal(t, 3, bpmn.Retries)
		assert.True(t, bpmn.Retryable)
	})

	t.Run("business error carries metadata", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewUserNotFoundError("u-1", "u-2"))
		assert.Equal(t, 0, bpmn.Retries)

		vars := bpmn.ToErrorVariables()
		assert.Equal(t, "USER_NOT_FOUND", vars["errorCode"])
		assert.Equal(t, []string{"u-1", "u-2"}, vars["userIds"])
		assert.Equal(t, "USER_NOT_FOUND", vars["originalErrorCode"])
	})
}

func TestRetriesFor(t *testing.T) {
	bpmn := &BPMNError{Retries: 3}

	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Retries: 5}}
	assert.Equal(t, int32(3), RetriesFor(job, bpmn))

	job = entities.Job{ActivatedJob: &pb.ActivatedJob{Retries: 2}}
	assert.Equal(t, int32(1), RetriesFor(job, bpmn))

	job = entities.Job{ActivatedJob: &pb.ActivatedJob{Retries: 1}}
	assert.Equal(t, int32(0), RetriesFor(job, bpmn))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatabaseInsertFailed))
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeAlertNotFound))
	assert.Equal(t, "STATE", GetErrorCategory(ErrCodeAlertNotAcknowledgeable))
	assert.Equal(t, "STATE", GetErrorCategory(ErrCodeInvalidStatusTransition))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidPushToken))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

package sendalert

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/alerts"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/config"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/errors"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type MockAlertService struct {
	mock.Mock
}

func (m *MockAlertService) CreateAlert(ctx context.Context, in alerts.CreateAlertInput) (*models.Alert, error) {
	args := m.Called(ctx, in)
	alert, _ := args.Get(0).(*models.Alert)
	return alert, args.Error(1)
}

func (m *MockAlertService) SendAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	args := m.Called(ctx, alertID)
	alert, _ := args.Get(0).(*models.Alert)
	return alert, args.Error(1)
}

func (m *MockAlertService) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	args := m.Called(ctx, alertID)
	alert, _ := args.Get(0).(*models.Alert)
	return alert, args.Error(1)
}

func createTestHandler(t *testing.T, svc AlertService) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, svc, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_SendsExistingAlert(t *testing.T) {
	svc := new(MockAlertService)
	svc.On("SendAlert", mock.Anything, "a1").Return(&models.Alert{
		ID:            "a1",
		Status:        models.AlertStatusSent,
		DeliveryStats: models.DeliveryStats{Total: 3, Sent: 2, Failed: 1},
	}, nil)

	out, err := createTestHandler(t, svc).Execute(context.Background(), &Input{AlertID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, &Output{
		AlertID:       "a1",
		Status:        models.AlertStatusSent,
		DeliveryStats: models.DeliveryStats{Total: 3, Sent: 2, Failed: 1},
	}, out)
	svc.AssertNotCalled(t, "CreateAlert", mock.Anything, mock.Anything)
}

func TestHandler_Execute_CreatesAndSends(t *testing.T) {
	svc := new(MockAlertService)
	svc.On("CreateAlert", mock.Anything, mock.MatchedBy(func(in alerts.CreateAlertInput) bool {
		return in.Title == "Gas leak" &&
			in.IncidentID == "inc-9" &&
			in.SendImmediately != nil && *in.SendImmediately
	})).Return(&models.Alert{
		ID:            "a2",
		Status:        models.AlertStatusFailed,
		DeliveryStats: models.DeliveryStats{Total: 1, Failed: 1},
	}, nil)

	var input Input
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": "Gas leak",
		"message": "Leave the east wing",
		"severity": "high",
		"channels": ["sms"],
		"targeting": {"roles": ["responder"]},
		"createdBy": "admin-1",
		"incidentId": "inc-9"
	}`), &input))

	out, err := createTestHandler(t, svc).Execute(context.Background(), &input)
	require.NoError(t, err)
	assert.Equal(t, "a2", out.AlertID)
	assert.Equal(t, models.AlertStatusFailed, out.Status)
	svc.AssertExpectations(t)
}

// ==========================
// Redelivery Tests
// ==========================

func TestHandler_Execute_RedeliveredSendCompletesWithStoredOutcome(t *testing.T) {
	svc := new(MockAlertService)
	svc.On("SendAlert", mock.Anything, "a1").Return(nil, errors.NewInvalidStatusTransitionError("sent", "sent"))
	svc.On("GetAlert", mock.Anything, "a1").Return(&models.Alert{
		ID:            "a1",
		Status:        models.AlertStatusSent,
		DeliveryStats: models.DeliveryStats{Total: 2, Sent: 2},
	}, nil)

	out, err := createTestHandler(t, svc).Execute(context.Background(), &Input{AlertID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, &Output{
		AlertID:       "a1",
		Status:        models.AlertStatusSent,
		DeliveryStats: models.DeliveryStats{Total: 2, Sent: 2},
	}, out)
	svc.AssertExpectations(t)
}

func TestHandler_Execute_CreateUsesJobDerivedID(t *testing.T) {
	wantID := alertIDForJob("2251799813685249")
	assert.Equal(t, wantID, alertIDForJob("2251799813685249"), "derived ID is stable")
	assert.NotEqual(t, wantID, alertIDForJob("2251799813685250"))

	svc := new(MockAlertService)
	svc.On("CreateAlert", mock.Anything, mock.MatchedBy(func(in alerts.CreateAlertInput) bool {
		return in.ID == wantID
	})).Return(&models.Alert{ID: wantID, Status: models.AlertStatusSent}, nil).Twice()

	h := createTestHandler(t, svc)
	input := &Input{
		Title:     "Gas leak",
		Message:   "Leave the east wing",
		Severity:  models.SeverityHigh,
		Channels:  []models.Channel{models.ChannelSMS},
		Targeting: models.Targeting{All: true},
		CreatedBy: "admin-1",
		JobKey:    "2251799813685249",
	}

	first, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	second, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.AlertID, second.AlertID)
	svc.AssertExpectations(t)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		setup    func(*MockAlertService)
		wantCode errors.ErrorCode
	}{
		{
			name:     "nil input",
			input:    nil,
			setup:    func(*MockAlertService) {},
			wantCode: errors.ErrCodeValidationFailed,
		},
		{
			name:  "alert cancelled",
			input: &Input{AlertID: "a1"},
			setup: func(m *MockAlertService) {
				m.On("SendAlert", mock.Anything, "a1").Return(nil, errors.NewInvalidStatusTransitionError("cancelled", "sent"))
				m.On("GetAlert", mock.Anything, "a1").Return(&models.Alert{ID: "a1", Status: models.AlertStatusCancelled}, nil)
			},
			wantCode: errors.ErrCodeInvalidStatusTransition,
		},
		{
			name:  "unknown target user",
			input: &Input{Title: "t", Message: "m", Severity: models.SeverityLow, Channels: []models.Channel{models.ChannelEmail}, Targeting: models.Targeting{UserIDs: []string{"ghost"}}, CreatedBy: "u"},
			setup: func(m *MockAlertService) {
				m.On("CreateAlert", mock.Anything, mock.Anything).Return(nil, errors.NewUserNotFoundError("ghost"))
			},
			wantCode: errors.ErrCodeUserNotFound,
		},
		{
			name:  "store failure",
			input: &Input{AlertID: "a1"},
			setup: func(m *MockAlertService) {
				m.On("SendAlert", mock.Anything, "a1").Return(nil, errors.NewDatabaseQueryFailedError("load alert", stderrors.New("conn reset")))
			},
			wantCode: errors.ErrCodeDatabaseQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAlertService)
			tt.setup(svc)

			out, err := createTestHandler(t, svc).Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, errors.IsCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 30*time.Second, LoadConfig(config.WorkerConfig{Timeout: 30000}).Timeout)
	assert.Equal(t, 60*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
}

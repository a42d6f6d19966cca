package alerts

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/errors"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/stretchr/testify/mock"
)

// ==========================
// Mock Implementations
// ==========================

type MockStore struct {
	mock.Mock
}

func (m *MockStore) LoadUsers(ctx context.Context) ([]models.Recipient, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Recipient), args.Error(1)
}

func (m *MockStore) LoadAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	args := m.Called(ctx, alertID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockStore) SaveAlert(ctx context.Context, alert *models.Alert) error {
	return m.Called(ctx, alert).Error(0)
}

func (m *MockStore) UpdateAlertStatus(ctx context.Context, alert *models.Alert, from models.AlertStatus) error {
	return m.Called(ctx, alert, from).Error(0)
}

func (m *MockStore) InsertAcknowledgment(ctx context.Context, ack models.Acknowledgment) (models.Acknowledgment, error) {
	args := m.Called(ctx, ack)
	return args.Get(0).(models.Acknowledgment), args.Error(1)
}

func (m *MockStore) GetAcknowledgment(ctx context.Context, alertID, userID string) (models.Acknowledgment, error) {
	args := m.Called(ctx, alertID, userID)
	return args.Get(0).(models.Acknowledgment), args.Error(1)
}

func (m *MockStore) CountAcknowledgments(ctx context.Context, alertID string) (int, error) {
	args := m.Called(ctx, alertID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) ListAcknowledgments(ctx context.Context, alertID string) ([]models.Acknowledgment, error) {
	args := m.Called(ctx, alertID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Acknowledgment), args.Error(1)
}

func (m *MockStore) UpdatePushToken(ctx context.Context, userID string, token models.PushToken) error {
	return m.Called(ctx, userID, token).Error(0)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Publish(ctx context.Context, topic string, event models.Event) error {
	return m.Called(ctx, topic, event).Error(0)
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(ctx context.Context, alert *models.Alert, attempts []models.DeliveryAttempt) error {
	return m.Called(ctx, alert, attempts).Error(0)
}

// dispatcherFunc adapts a function to Dispatcher.
type dispatcherFunc func(ctx context.Context, alert *models.Alert, rs []models.Recipient) []models.DeliveryAttempt

func (f dispatcherFunc) Dispatch(ctx context.Context, alert *models.Alert, rs []models.Recipient) []models.DeliveryAttempt {
	return f(ctx, alert, rs)
}

// gatedDispatcher holds every Dispatch until release is closed. Each call
// signals entered first.
type gatedDispatcher struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedDispatcher() *gatedDispatcher {
	return &gatedDispatcher{
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (d *gatedDispatcher) Dispatch(_ context.Context, alert *models.Alert, rs []models.Recipient) []models.DeliveryAttempt {
	d.calls.Add(1)
	d.entered <- struct{}{}
	<-d.release

	out := make([]models.DeliveryAttempt, len(rs))
	for i, r := range rs {
		out[i] = models.DeliveryAttempt{
			AlertID:     alert.ID,
			RecipientID: r.ID,
			Channel:     models.ChannelEmail,
			Success:     true,
			Provider:    models.ProviderSimulated,
		}
	}
	return out
}

// memStore keeps alerts and acknowledgments in memory with the same
// uniqueness and status guards as the database.
type memStore struct {
	MockStore

	mu     sync.Mutex
	alerts map[string]*models.Alert
	users  map[string]bool
	acks   map[string]models.Acknowledgment
}

func newMemStore(users ...string) *memStore {
	s := &memStore{
		alerts: make(map[string]*models.Alert),
		users:  make(map[string]bool),
		acks:   make(map[string]models.Acknowledgment),
	}
	for _, u := range users {
		s.users[u] = true
	}
	return s
}

func (s *memStore) LoadAlert(_ context.Context, alertID string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[alertID]
	if !ok {
		return nil, errors.NewAlertNotFoundError(alertID)
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) SaveAlert(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.alerts[alert.ID]; ok && cur.Status != models.AlertStatusPending {
		return ErrStatusConflict
	}
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}

func (s *memStore) UpdateAlertStatus(_ context.Context, alert *models.Alert, from models.AlertStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.alerts[alert.ID]
	if !ok || cur.Status != from {
		return ErrStatusConflict
	}
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}

func (s *memStore) status(alertID string) models.AlertStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts[alertID].Status
}

func (s *memStore) InsertAcknowledgment(_ context.Context, ack models.Acknowledgment) (models.Acknowledgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users[ack.UserID] {
		return models.Acknowledgment{}, errors.NewUserNotFoundError(ack.UserID)
	}
	key := ack.AlertID + "/" + ack.UserID
	if _, ok := s.acks[key]; ok {
		return models.Acknowledgment{}, ErrDuplicateAcknowledgment
	}
	s.acks[key] = ack
	return ack, nil
}

func (s *memStore) GetAcknowledgment(_ context.Context, alertID, userID string) (models.Acknowledgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acks[alertID+"/"+userID], nil
}

func (s *memStore) CountAcknowledgments(_ context.Context, alertID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.acks {
		if a.AlertID == alertID {
			n++
		}
	}
	return n, nil
}

// cachingUsers is a UserLoader that can be invalidated.
type cachingUsers struct {
	users       []models.Recipient
	invalidated int
}

func (c *cachingUsers) LoadUsers(context.Context) ([]models.Recipient, error) {
	return c.users, nil
}

func (c *cachingUsers) Invalidate(context.Context) error {
	c.invalidated++
	return nil
}

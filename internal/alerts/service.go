package alerts

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/errors"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/metrics"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/observability"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/recipients"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/stats"

	"github.com/google/uuid"
)

// CreateAlertInput carries a new alert. SendImmediately defaults to true.
// ID is normally empty; callers that may retry set it so a repeated create
// returns the alert from the first call.
type CreateAlertInput struct {
	ID              string           `json:"-"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	Severity        models.Severity  `json:"severity"`
	Channels        []models.Channel `json:"channels"`
	Targeting       models.Targeting `json:"targeting"`
	CreatedBy       string           `json:"createdBy"`
	IncidentID      string           `json:"incidentId,omitempty"`
	SendImmediately *bool            `json:"sendImmediately,omitempty"`
}

func (in CreateAlertInput) sendNow() bool {
	return in.SendImmediately == nil || *in.SendImmediately
}

// Deps are the collaborators of a Service. Users, Broadcaster, Auditor and
// Observability are optional.
type Deps struct {
	Store         Store
	Users         UserLoader
	Dispatcher    Dispatcher
	Broadcaster   Broadcaster
	Auditor       Auditor
	Observability *observability.Observability
	Clock         func() time.Time
}

type Service struct {
	store       Store
	users       UserLoader
	dispatcher  Dispatcher
	broadcaster Broadcaster
	auditor     Auditor
	obs         *observability.Observability
	acks        *AckTracker
	logger      logger.Logger
	now         func() time.Time
}

func NewService(deps Deps, log logger.Logger) *Service {
	users := deps.Users
	if users == nil {
		users = deps.Store
	}
	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	s := &Service{
		store:       deps.Store,
		users:       users,
		dispatcher:  deps.Dispatcher,
		broadcaster: deps.Broadcaster,
		auditor:     deps.Auditor,
		obs:         deps.Observability,
		logger:      log.WithFields(map[string]interface{}{"component": "alerts"}),
		now:         now,
	}
	s.acks = newAckTracker(deps.Store, s.publish, deps.Observability, s.logger, now)
	return s
}

// CreateAlert stores a new pending alert and, unless SendImmediately is
// false, dispatches it right away. Recipients are resolved before anything
// is written so an unknown user ID leaves no alert behind.
func (s *Service) CreateAlert(ctx context.Context, in CreateAlertInput) (*models.Alert, error) {
	chs, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	if in.ID != "" {
		existing, err := s.store.LoadAlert(ctx, in.ID)
		switch {
		case err == nil:
			return s.resume(ctx, existing, in.sendNow())
		case !errors.IsCode(err, errors.ErrCodeAlertNotFound):
			return nil, err
		}
	}

	var rs []models.Recipient
	if in.sendNow() {
		if rs, err = s.resolve(ctx, in.Targeting); err != nil {
			return nil, err
		}
	}

	now := s.now()
	alert := &models.Alert{
		ID:              in.ID,
		Title:           strings.TrimSpace(in.Title),
		Message:         in.Message,
		Severity:        in.Severity,
		CreatedBy:       in.CreatedBy,
		IncidentID:      in.IncidentID,
		Channels:        chs,
		Targeting:       in.Targeting,
		Status:          models.AlertStatusPending,
		Acknowledgments: []models.Acknowledgment{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if err := s.store.SaveAlert(ctx, alert); err != nil {
		return nil, err
	}

	s.logger.Info("alert created", map[string]interface{}{
		"alertId":  alert.ID,
		"severity": string(alert.Severity),
		"channels": len(alert.Channels),
		"sendNow":  in.sendNow(),
	})

	if !in.sendNow() {
		return alert, nil
	}
	if err := s.deliver(ctx, alert, rs); err != nil {
		return nil, err
	}
	return alert, nil
}

// resume finishes a repeated create: a still pending alert is dispatched
// when requested, anything else is returned as stored.
func (s *Service) resume(ctx context.Context, alert *models.Alert, sendNow bool) (*models.Alert, error) {
	s.logger.Info("alert already exists", map[string]interface{}{
		"alertId": alert.ID,
		"status":  string(alert.Status),
	})
	if !sendNow || alert.Status != models.AlertStatusPending {
		return alert, nil
	}
	rs, err := s.resolve(ctx, alert.Targeting)
	if err != nil {
		return nil, err
	}
	if err := s.deliver(ctx, alert, rs); err != nil {
		return nil, err
	}
	return alert, nil
}

// SendAlert dispatches a pending alert.
func (s *Service) SendAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	alert, err := s.store.LoadAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !alert.Status.CanTransition(models.AlertStatusSent) {
		return nil, errors.NewInvalidStatusTransitionError(string(alert.Status), string(models.AlertStatusSent))
	}

	rs, err := s.resolve(ctx, alert.Targeting)
	if err != nil {
		return nil, err
	}
	if err := s.deliver(ctx, alert, rs); err != nil {
		return nil, err
	}
	return alert, nil
}

// CancelAlert moves a pending alert to cancelled and tells its audience.
func (s *Service) CancelAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	alert, err := s.store.LoadAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, alert, models.AlertStatusCancelled); err != nil {
		return nil, err
	}

	s.logger.Info("alert cancelled", map[string]interface{}{"alertId": alert.ID})

	rs, err := s.resolve(ctx, alert.Targeting)
	if err != nil {
		s.logger.Warn("cancel broadcast limited to roles", map[string]interface{}{
			"alertId": alert.ID,
			"error":   err.Error(),
		})
		rs = nil
	}
	s.publish(ctx, audienceTopics(alert, rs), s.event(models.EventAlertCancelled, map[string]interface{}{
		"alertId": alert.ID,
		"status":  alert.Status,
	}))
	return alert, nil
}

// GetAlert loads an alert together with its acknowledgments.
func (s *Service) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	alert, err := s.store.LoadAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	acks, err := s.store.ListAcknowledgments(ctx, alertID)
	if err != nil {
		return nil, err
	}
	alert.Acknowledgments = acks
	return alert, nil
}

func (s *Service) ListAcknowledgments(ctx context.Context, alertID string) ([]models.Acknowledgment, error) {
	if _, err := s.store.LoadAlert(ctx, alertID); err != nil {
		return nil, err
	}
	return s.store.ListAcknowledgments(ctx, alertID)
}

func (s *Service) Acknowledge(ctx context.Context, alertID, userID, notes string) (AckResult, error) {
	return s.acks.Acknowledge(ctx, alertID, userID, notes)
}

func (s *Service) AcknowledgmentStats(ctx context.Context, alertID string) (AckStats, error) {
	return s.acks.Stats(ctx, alertID)
}

// RegisterPushToken classifies raw and stores it on the user.
func (s *Service) RegisterPushToken(ctx context.Context, userID, raw string) (models.PushToken, error) {
	if strings.TrimSpace(userID) == "" {
		return models.PushToken{}, errors.NewValidationFailedError("userId is required")
	}
	token, err := models.ParsePushToken(raw)
	if err != nil {
		return models.PushToken{}, errors.NewInvalidPushTokenError(err.Error())
	}
	if err := s.store.UpdatePushToken(ctx, userID, token); err != nil {
		return models.PushToken{}, err
	}

	if inv, ok := s.users.(Invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			s.logger.Warn("recipient cache invalidation failed", map[string]interface{}{"error": err.Error()})
		}
	}

	s.logger.Info("push token registered", map[string]interface{}{
		"userId": userID,
		"kind":   string(token.Kind),
	})
	return token, nil
}

func (s *Service) resolve(ctx context.Context, targeting models.Targeting) ([]models.Recipient, error) {
	users, err := s.users.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	return recipients.Resolve(targeting, users)
}

// deliver claims a pending alert by moving it to sent, dispatches it and
// records the outcome. Only the caller that wins the claim dispatches.
func (s *Service) deliver(ctx context.Context, alert *models.Alert, rs []models.Recipient) error {
	start := s.now()
	if err := s.transition(ctx, alert, models.AlertStatusSent); err != nil {
		return err
	}

	attempts := s.dispatcher.Dispatch(ctx, alert, rs)

	alert.DeliveryStats = stats.Reduce(attempts)
	status := stats.FinalStatus(alert.DeliveryStats)
	alert.Status = status
	alert.UpdatedAt = s.now()
	if err := s.store.UpdateAlertStatus(ctx, alert, models.AlertStatusSent); err != nil {
		if stderrors.Is(err, ErrStatusConflict) {
			return s.conflict(ctx, alert.ID, status)
		}
		return err
	}

	metrics.AlertsDispatched.WithLabelValues(string(status)).Inc()
	s.obs.RecordDispatch(ctx, string(status), len(attempts), s.now().Sub(start))

	s.logger.Info("alert dispatched", map[string]interface{}{
		"alertId":    alert.ID,
		"status":     string(status),
		"recipients": len(rs),
		"total":      alert.DeliveryStats.Total,
		"sent":       alert.DeliveryStats.Sent,
		"failed":     alert.DeliveryStats.Failed,
	})

	if s.auditor != nil {
		if err := s.auditor.Record(ctx, alert, attempts); err != nil {
			s.logger.Warn("delivery audit failed", map[string]interface{}{
				"alertId": alert.ID,
				"error":   err.Error(),
			})
		}
	}

	s.publish(ctx, audienceTopics(alert, rs), s.event(models.EventNewAlert, alertPayload(alert)))
	return nil
}

// transition moves a pending alert to next in memory and then in the store,
// where the write only lands if the row is still in the status it was
// loaded with.
func (s *Service) transition(ctx context.Context, alert *models.Alert, next models.AlertStatus) error {
	from := alert.Status
	if err := alert.Transition(next, s.now()); err != nil {
		return errors.NewInvalidStatusTransitionError(string(from), string(next))
	}

	err := s.store.UpdateAlertStatus(ctx, alert, from)
	if stderrors.Is(err, ErrStatusConflict) {
		return s.conflict(ctx, alert.ID, next)
	}
	return err
}

// conflict reports a transition lost to a concurrent writer, naming the
// status that writer left behind.
func (s *Service) conflict(ctx context.Context, alertID string, next models.AlertStatus) error {
	current, err := s.store.LoadAlert(ctx, alertID)
	if err != nil {
		return err
	}
	s.logger.Warn("alert status changed concurrently", map[string]interface{}{
		"alertId": alertID,
		"status":  string(current.Status),
		"wanted":  string(next),
	})
	return errors.NewInvalidStatusTransitionError(string(current.Status), string(next))
}

// publish sends event to every topic. Failures are logged and dropped.
func (s *Service) publish(ctx context.Context, topics []string, event models.Event) {
	if s.broadcaster == nil {
		return
	}
	for _, topic := range topics {
		if err := s.broadcaster.Publish(ctx, topic, event); err != nil {
			s.logger.Warn("realtime publish failed", map[string]interface{}{
				"topic": topic,
				"event": event.Name,
				"error": err.Error(),
			})
		}
	}
}

func (s *Service) event(name string, payload interface{}) models.Event {
	return models.Event{Name: name, Payload: payload, Timestamp: s.now()}
}

// audienceTopics lists each recipient's user topic followed by each
// targeted role topic, without duplicates.
func audienceTopics(alert *models.Alert, rs []models.Recipient) []string {
	seen := make(map[string]bool)
	var topics []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			topics = append(topics, t)
		}
	}
	for _, r := range rs {
		add(models.UserTopic(r.ID))
	}
	for _, role := range alert.Targeting.Roles {
		if role = strings.TrimSpace(role); role != "" {
			add(models.RoleTopic(strings.ToLower(role)))
		}
	}
	return topics
}

func alertPayload(alert *models.Alert) map[string]interface{} {
	return map[string]interface{}{
		"alertId":       alert.ID,
		"title":         alert.Title,
		"message":       alert.Message,
		"severity":      alert.Severity,
		"status":        alert.Status,
		"incidentId":    alert.IncidentID,
		"deliveryStats": alert.DeliveryStats,
		"createdAt":     alert.CreatedAt,
	}
}

func validateInput(in CreateAlertInput) ([]models.Channel, error) {
	var problems []string
	if strings.TrimSpace(in.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(in.Message) == "" {
		problems = append(problems, "message is required")
	}
	if !in.Severity.Valid() {
		problems = append(problems, "severity must be one of low, medium, high, critical")
	}
	if strings.TrimSpace(in.CreatedBy) == "" {
		problems = append(problems, "createdBy is required")
	}
	chs, err := models.NormalizeChannels(in.Channels)
	if err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return nil, errors.NewValidationFailedError(strings.Join(problems, "; "))
	}
	if in.Targeting.Empty() {
		return nil, errors.NewInvalidTargetingError("targeting must set all, roles or userIds")
	}
	return chs, nil
}

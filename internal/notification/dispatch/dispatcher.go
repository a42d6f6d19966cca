// Package dispatch fans an alert out to every eligible (recipient, channel)
// pair and collects one DeliveryAttempt per adapter call.
package dispatch

import (
	"context"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/metrics"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/channels"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxConcurrency = 32

type Config struct {
	MaxConcurrency int
}

// Target is one planned adapter call.
type Target struct {
	Recipient models.Recipient
	Channel   models.Channel
}

type Dispatcher struct {
	adapters map[models.Channel]channels.Adapter
	limit    int
	logger   logger.Logger
	now      func() time.Time
}

// New builds a Dispatcher over the given adapters. A later adapter for the
// same channel replaces an earlier one.
func New(cfg Config, log logger.Logger, adapters ...channels.Adapter) *Dispatcher {
	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}

	byChannel := make(map[models.Channel]channels.Adapter, len(adapters))
	for _, a := range adapters {
		byChannel[a.Channel()] = a
	}

	return &Dispatcher{
		adapters: byChannel,
		limit:    limit,
		logger:   log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		now:      time.Now,
	}
}

// Plan lists the eligible pairs in recipient order, then alert channel
// order. Pairs whose channel is disabled or address is empty are left out.
func (d *Dispatcher) Plan(alert *models.Alert, recipients []models.Recipient) []Target {
	var targets []Target
	for _, r := range recipients {
		for _, c := range alert.Channels {
			if !r.Eligible(c) {
				continue
			}
			targets = append(targets, Target{Recipient: r, Channel: c})
		}
	}
	return targets
}

// Dispatch sends the alert to every planned target, at most
// MaxConcurrency at a time, and returns after all calls have settled.
// attempts[i] belongs to Plan(alert, recipients)[i] minus any target whose
// channel has no adapter.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.Alert, recipients []models.Recipient) []models.DeliveryAttempt {
	ctx, span := otel.Tracer("github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/dispatch").
		Start(ctx, "dispatch.Dispatch")
	defer span.End()

	targets := d.routable(alert, d.Plan(alert, recipients))
	span.SetAttributes(
		attribute.String("alert.id", alert.ID),
		attribute.Int("dispatch.recipients", len(recipients)),
		attribute.Int("dispatch.attempts", len(targets)),
	)

	start := d.now()
	msg := messageFor(alert)
	attempts := make([]models.DeliveryAttempt, len(targets))

	var g errgroup.Group
	g.SetLimit(d.limit)
	for i, t := range targets {
		g.Go(func() error {
			attempts[i] = d.attempt(ctx, alert.ID, t, msg)
			return nil
		})
	}
	_ = g.Wait()

	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	d.logger.Info("dispatch complete", map[string]interface{}{
		"alertId":    alert.ID,
		"recipients": len(recipients),
		"attempts":   len(attempts),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return attempts
}

func (d *Dispatcher) routable(alert *models.Alert, targets []Target) []Target {
	out := targets[:0:0]
	warned := make(map[models.Channel]bool)
	for _, t := range targets {
		if _, ok := d.adapters[t.Channel]; ok {
			out = append(out, t)
			continue
		}
		if !warned[t.Channel] {
			warned[t.Channel] = true
			d.logger.Warn("no adapter registered for channel", map[string]interface{}{
				"alertId": alert.ID,
				"channel": string(t.Channel),
			})
		}
	}
	return out
}

func (d *Dispatcher) attempt(ctx context.Context, alertID string, t Target, msg channels.Message) models.DeliveryAttempt {
	started := d.now()
	out := d.adapters[t.Channel].Send(ctx, t.Recipient.AddressFor(t.Channel), msg, channels.Metadata{
		AlertID:     alertID,
		RecipientID: t.Recipient.ID,
	})

	a := models.DeliveryAttempt{
		AlertID:     alertID,
		RecipientID: t.Recipient.ID,
		Channel:     t.Channel,
		Success:     out.Success,
		Provider:    out.Provider,
		Reason:      out.Reason,
		Error:       out.Error,
		MessageID:   out.MessageID,
		AttemptedAt: started,
		Duration:    time.Since(started),
	}
	metrics.DeliveryAttempts.WithLabelValues(string(a.Channel), string(a.Provider), a.Outcome()).Inc()
	return a
}

func messageFor(alert *models.Alert) channels.Message {
	data := map[string]string{}
	if alert.IncidentID != "" {
		data["incidentId"] = alert.IncidentID
	}
	return channels.Message{
		Title:    alert.Title,
		Body:     alert.Message,
		Severity: alert.Severity,
		Data:     data,
	}
}

// Package channels delivers a single alert message to a single address over
// email, SMS or push. Adapters never return errors: every call yields an
// Outcome, degrading to a simulated send when the live provider is absent
// or fails.
package channels

import (
	"context"
	"errors"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTimeout = 5 * time.Second

// Adapter sends one message to one address on one channel.
type Adapter interface {
	Channel() models.Channel
	Send(ctx context.Context, to models.Address, msg Message, meta Metadata) Outcome
}

// Message is the channel-neutral alert content.
type Message struct {
	Title    string
	Body     string
	Severity models.Severity
	Data     map[string]string
}

// Metadata identifies the attempt for logs and provider tags.
type Metadata struct {
	AlertID     string
	RecipientID string
}

// Outcome is the result of one Send.
type Outcome struct {
	Success   bool
	Provider  models.Provider
	Reason    string
	Error     string
	MessageID string
}

// ProviderConfig decides per adapter whether the live provider is used.
type ProviderConfig struct {
	Live            bool
	Timeout         time.Duration
	SimulationDelay time.Duration
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func preconditionFailure() Outcome {
	return Outcome{
		Success:  false,
		Provider: models.ProviderNone,
		Reason:   models.ReasonMissingOrInvalidAddress,
	}
}

// simulator stands in for a provider: it waits a fixed delay and reports success.
type simulator struct {
	delay time.Duration
}

// run waits on the caller's context, not the expired provider context.
func (s simulator) run(ctx context.Context, reason string, cause error) Outcome {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	out := Outcome{Success: true, Provider: models.ProviderSimulated, Reason: reason}
	if cause != nil {
		out.Error = cause.Error()
	}
	return out
}

// failureReason separates provider timeouts from other provider errors.
func failureReason(callCtx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return models.ReasonProviderTimeout
	}
	return models.ReasonProviderError
}

var tracer = otel.Tracer("github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/channels")

func startProviderSpan(ctx context.Context, name string, channel models.Channel, meta Metadata) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("alert.id", meta.AlertID),
		attribute.String("recipient.id", meta.RecipientID),
		attribute.String("channel", string(channel)),
	))
}

func endProviderSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// logAttempt writes the single log line for an attempt.
func logAttempt(log logger.Logger, channel models.Channel, meta Metadata, out Outcome) {
	fields := map[string]interface{}{
		"channel":     string(channel),
		"alertId":     meta.AlertID,
		"recipientId": meta.RecipientID,
		"success":     out.Success,
		"provider":    string(out.Provider),
	}
	if out.Reason != "" {
		fields["reason"] = out.Reason
	}
	if out.Error != "" {
		fields["error"] = out.Error
	}
	if out.MessageID != "" {
		fields["messageId"] = out.MessageID
	}

	switch {
	case !out.Success:
		log.Warn("delivery attempt failed", fields)
	case out.Provider == models.ProviderSimulated:
		log.Info("delivery simulated", fields)
	default:
		log.Info("delivery sent", fields)
	}
}

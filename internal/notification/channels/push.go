package channels

import (
	"context"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"
)

type PushConfig struct {
	Provider ProviderConfig
}

type PushAdapter struct {
	config PushConfig
	expo   ExpoPusher
	sim    simulator
	logger logger.Logger
}

// NewPushAdapter builds the push adapter. Only Expo tokens have a live
// provider; other token kinds are always simulated.
func NewPushAdapter(config PushConfig, expo ExpoPusher, log logger.Logger) *PushAdapter {
	return &PushAdapter{
		config: config,
		expo:   expo,
		sim:    simulator{delay: config.Provider.SimulationDelay},
		logger: log.WithFields(map[string]interface{}{"adapter": "push"}),
	}
}

func (a *PushAdapter) Channel() models.Channel { return models.ChannelPush }

func (a *PushAdapter) Send(ctx context.Context, to models.Address, msg Message, meta Metadata) Outcome {
	out := a.send(ctx, to, msg, meta)
	logAttempt(a.logger, models.ChannelPush, meta, out)
	return out
}

func (a *PushAdapter) send(ctx context.Context, to models.Address, msg Message, meta Metadata) Outcome {
	if to.Empty() {
		return preconditionFailure()
	}

	switch to.PushKind {
	case models.PushTokenExpo:
	case models.PushTokenOther:
		return a.sim.run(ctx, models.ReasonNoProviderForTokenKind, nil)
	default:
		return preconditionFailure()
	}

	if !a.config.Provider.Live || a.expo == nil {
		return a.sim.run(ctx, models.ReasonProviderNotConfigured, nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.config.Provider.timeout())
	defer cancel()

	callCtx, span := startProviderSpan(callCtx, "expo.Push", models.ChannelPush, meta)
	ticket, err := a.expo.Push(callCtx, a.buildMessage(to.Value, msg, meta))
	endProviderSpan(span, err)
	if err != nil {
		return a.sim.run(ctx, failureReason(callCtx, err), err)
	}

	return Outcome{
		Success:   true,
		Provider:  models.ProviderExpo,
		MessageID: ticket.ID,
	}
}

func (a *PushAdapter) buildMessage(token string, msg Message, meta Metadata) ExpoMessage {
	data := map[string]string{
		"alertId":  meta.AlertID,
		"severity": string(msg.Severity),
	}
	for k, v := range msg.Data {
		data[k] = v
	}

	priority := "default"
	if msg.Severity.Urgent() {
		priority = "high"
	}

	return ExpoMessage{
		To:       token,
		Title:    emailSubject(msg),
		Body:     msg.Body,
		Data:     data,
		Sound:    "default",
		Priority: priority,
	}
}

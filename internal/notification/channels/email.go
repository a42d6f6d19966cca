package channels

import (
	"context"
	"fmt"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/validation"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client the email adapter calls.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type EmailConfig struct {
	Provider  ProviderConfig
	FromEmail string
	FromName  string
}

type EmailAdapter struct {
	config EmailConfig
	client SESAPI
	sim    simulator
	logger logger.Logger
}

// NewEmailAdapter builds the email adapter. A nil client forces simulation
// regardless of config.Provider.Live.
func NewEmailAdapter(config EmailConfig, client SESAPI, log logger.Logger) *EmailAdapter {
	return &EmailAdapter{
		config: config,
		client: client,
		sim:    simulator{delay: config.Provider.SimulationDelay},
		logger: log.WithFields(map[string]interface{}{"adapter": "email"}),
	}
}

func (a *EmailAdapter) Channel() models.Channel { return models.ChannelEmail }

func (a *EmailAdapter) Send(ctx context.Context, to models.Address, msg Message, meta Metadata) Outcome {
	out := a.send(ctx, to, msg, meta)
	logAttempt(a.logger, models.ChannelEmail, meta, out)
	return out
}

func (a *EmailAdapter) send(ctx context.Context, to models.Address, msg Message, meta Metadata) Outcome {
	if to.Empty() || !validation.ValidateEmail(to.Value) {
		return preconditionFailure()
	}
	if !a.config.Provider.Live || a.client == nil {
		return a.sim.run(ctx, models.ReasonProviderNotConfigured, nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.config.Provider.timeout())
	defer cancel()

	callCtx, span := startProviderSpan(callCtx, "ses.SendEmail", models.ChannelEmail, meta)
	res, err := a.client.SendEmail(callCtx, a.buildInput(to.Value, msg, meta))
	endProviderSpan(span, err)
	if err != nil {
		return a.sim.run(ctx, failureReason(callCtx, err), err)
	}

	return Outcome{
		Success:   true,
		Provider:  models.ProviderSES,
		MessageID: aws.ToString(res.MessageId),
	}
}

func (a *EmailAdapter) source() string {
	if a.config.FromName == "" {
		return a.config.FromEmail
	}
	return fmt.Sprintf("%s <%s>", a.config.FromName, a.config.FromEmail)
}

func (a *EmailAdapter) buildInput(to string, msg Message, meta Metadata) *ses.SendEmailInput {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(emailSubject(msg)), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(emailText(msg)), Charset: aws.String("UTF-8")},
				Html: &types.Content{Data: aws.String(emailHTML(msg)), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(a.source()),
	}
	if meta.AlertID != "" {
		input.Tags = []types.MessageTag{{Name: aws.String("alertId"), Value: aws.String(meta.AlertID)}}
	}
	return input
}

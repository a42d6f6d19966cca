package channels

import (
	"context"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/validation"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of the SNS client the SMS adapter calls.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SMSConfig struct {
	Provider ProviderConfig
	SenderID string
}

type SMSAdapter struct {
	config SMSConfig
	client SNSAPI
	sim    simulator
	logger logger.Logger
}

func NewSMSAdapter(config SMSConfig, client SNSAPI, log logger.Logger) *SMSAdapter {
	return &SMSAdapter{
		config: config,
		client: client,
		sim:    simulator{delay: config.Provider.SimulationDelay},
		logger: log.WithFields(map[string]interface{}{"adapter": "sms"}),
	}
}

func (a *SMSAdapter) Channel() models.Channel { return models.ChannelSMS }

func (a *SMSAdapter) Send(ctx context.Context, to models.Address, msg Message, meta Metadata) Outcome {
	out := a.send(ctx, to, msg, meta)
	logAttempt(a.logger, models.ChannelSMS, meta, out)
	return out
}

func (a *SMSAdapter) send(ctx context.Context, to models.Address, msg Message, meta Metadata) Outcome {
	if to.Empty() || !validation.ValidatePhone(to.Value) {
		return preconditionFailure()
	}
	if !a.config.Provider.Live || a.client == nil {
		return a.sim.run(ctx, models.ReasonProviderNotConfigured, nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.config.Provider.timeout())
	defer cancel()

	callCtx, span := startProviderSpan(callCtx, "sns.Publish", models.ChannelSMS, meta)
	res, err := a.client.Publish(callCtx, a.buildInput(to.Value, msg))
	endProviderSpan(span, err)
	if err != nil {
		return a.sim.run(ctx, failureReason(callCtx, err), err)
	}

	return Outcome{
		Success:   true,
		Provider:  models.ProviderSNS,
		MessageID: aws.ToString(res.MessageId),
	}
}

func (a *SMSAdapter) buildInput(to string, msg Message) *sns.PublishInput {
	smsType := "Promotional"
	if msg.Severity.Urgent() {
		smsType = "Transactional"
	}

	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String(smsType)},
	}
	if a.config.SenderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(a.config.SenderID),
		}
	}

	return &sns.PublishInput{
		PhoneNumber:       aws.String(to),
		Message:           aws.String(smsText(msg)),
		MessageAttributes: attrs,
	}
}

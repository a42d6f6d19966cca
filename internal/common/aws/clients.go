// Package aws builds the SES and SNS clients behind the email and SMS
// adapters. Both share one resolved SDK config.
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type Options struct {
	Region string
	// Endpoint overrides the service endpoint, e.g. a LocalStack URL.
	Endpoint string
	Email    bool
	SMS      bool
}

// Clients holds a client per enabled provider; disabled ones stay nil.
type Clients struct {
	SES *ses.Client
	SNS *sns.Client
}

// New resolves credentials from the default chain. It returns empty Clients
// without touching the chain when neither provider is enabled.
func New(ctx context.Context, opts Options) (*Clients, error) {
	if !opts.Email && !opts.SMS {
		return &Clients{}, nil
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(
			awssdk.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (awssdk.Endpoint, error) {
				return awssdk.Endpoint{URL: opts.Endpoint, SigningRegion: region}, nil
			}),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config for %s: %w", opts.Region, err)
	}

	clients := &Clients{}
	if opts.Email {
		clients.SES = ses.NewFromConfig(cfg)
	}
	if opts.SMS {
		clients.SNS = sns.NewFromConfig(cfg)
	}
	return clients, nil
}

package cli

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/acm"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/Collaborne/custom-cloudformation-resources/internal/certificate"
	"github.com/Collaborne/custom-cloudformation-resources/internal/cfn"
	"github.com/Collaborne/custom-cloudformation-resources/internal/config"
	"github.com/Collaborne/custom-cloudformation-resources/internal/domainidentity"
	"github.com/Collaborne/custom-cloudformation-resources/internal/lifecycle"
	"github.com/Collaborne/custom-cloudformation-resources/internal/logging"
	"github.com/Collaborne/custom-cloudformation-resources/internal/schedule"
)

// newEngine loads the configuration, builds the AWS clients, and wires the
// lifecycle engine with all registered resource handlers.
func newEngine(ctx context.Context) (*lifecycle.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.LogLevel)

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	handlers := lifecycle.NewRegistry()
	handlers.Register(certificate.ResourceType,
		certificate.New(acm.NewFromConfig(awsCfg), route53.NewFromConfig(awsCfg), cfg))
	handlers.Register(domainidentity.ResourceType,
		domainidentity.New(sesv2.NewFromConfig(awsCfg)))

	scheduler := schedule.New(
		eventbridge.NewFromConfig(awsCfg),
		lambda.NewFromConfig(awsCfg),
		cfg.FunctionARN,
		cfg.EventRoleARN,
	)

	return lifecycle.NewEngine(handlers, cfn.NewReporter(nil), scheduler), nil
}

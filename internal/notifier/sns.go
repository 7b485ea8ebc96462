package notifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"
)

// DefaultSNSRegion is used when no region is configured.
const DefaultSNSRegion = "us-east-1"

// snsPublisher is the subset of the SNS client the notifier needs.
type snsPublisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes messages to an AWS SNS topic.
type SNSNotifier struct {
	TopicARN string
	client   snsPublisher
}

// NewSNSNotifier builds an SNS client. Static credentials are used when an
// access key is given, otherwise the default AWS credential chain applies.
func NewSNSNotifier(ctx context.Context, topicARN, region, accessKey, secretKey string) (*SNSNotifier, error) {
	if topicARN == "" {
		return nil, fmt.Errorf("sns: topic ARN is required")
	}
	if region == "" {
		region = DefaultSNSRegion
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSNotifier{TopicARN: topicARN, client: sns.NewFromConfig(cfg)}, nil
}

func (s *SNSNotifier) Name() string { return "sns" }

func (s *SNSNotifier) Publish(ctx context.Context, message string) error {
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.TopicARN),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	log.Debug().Str("message_id", aws.ToString(out.MessageId)).Msg("sns message published")
	return nil
}

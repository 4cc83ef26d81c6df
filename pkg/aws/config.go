package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.uber.org/zap"
)

// endpointFromEnv returns the override endpoint used for LocalStack, if any.
// AWS_SQS_ENDPOINT wins over AWS_DYNAMODB_ENDPOINT which wins over AWS_ENDPOINT.
func endpointFromEnv() string {
	for _, key := range []string{"AWS_SQS_ENDPOINT", "AWS_DYNAMODB_ENDPOINT", "AWS_ENDPOINT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// LoadAWSConfig loads the default SDK config. When an endpoint override is
// present every client is pointed at it so a single LocalStack edge port
// serves SNS, SQS, DynamoDB, Secrets Manager and CloudWatch.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region := os.Getenv("AWS_REGION"); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	accessKey, secretKey := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, os.Getenv("AWS_SESSION_TOKEN")),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}

	endpoint := endpointFromEnv()
	if endpoint == "" {
		return cfg, nil
	}

	signingRegion := cfg.Region
	if signingRegion == "" {
		signingRegion = os.Getenv("AWS_REGION")
	}

	cfg.EndpointResolverWithOptions = sdkaws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (sdkaws.Endpoint, error) {
		sr := signingRegion
		if sr == "" {
			sr = region
		}
		return sdkaws.Endpoint{
			URL:               endpoint,
			SigningRegion:     sr,
			HostnameImmutable: true,
		}, nil
	})

	zap.L().Debug("aws endpoint override",
		zap.String("endpoint", endpoint),
		zap.String("signing_region", signingRegion),
	)
	return cfg, nil
}

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// rdsTokenLifetime is fixed by AWS.
const rdsTokenLifetime = 15 * time.Minute

// AWSTokenProvider signs RDS IAM authentication tokens with the default
// AWS credential chain.
type AWSTokenProvider struct {
	endpoint string
	region   string
	username string
}

func NewAWSTokenProvider(endpoint, region, username string) (*AWSTokenProvider, error) {
	switch {
	case endpoint == "":
		return nil, fmt.Errorf("AWS IAM auth requires host and port: %w", rgpipe.ErrInvalidConfig)
	case region == "":
		return nil, fmt.Errorf("AWS IAM auth requires a region (--aws-region or $AWS_REGION): %w", rgpipe.ErrInvalidConfig)
	case username == "":
		return nil, fmt.Errorf("AWS IAM auth requires a username (-U): %w", rgpipe.ErrInvalidConfig)
	}
	return &AWSTokenProvider{endpoint: endpoint, region: region, username: username}, nil
}

func (p *AWSTokenProvider) GetToken(ctx context.Context) (string, time.Time, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(p.region))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("load AWS config: %w", err)
	}
	token, err := auth.BuildAuthToken(ctx, p.endpoint, p.region, p.username, awsCfg.Credentials)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build RDS auth token: %w", err)
	}
	return token, time.Now().Add(rdsTokenLifetime), nil
}

func (p *AWSTokenProvider) String() string {
	return fmt.Sprintf("aws-iam(%s@%s, %s)", p.username, p.endpoint, p.region)
}

func newAWSConnector(cfg *rgpipe.ConnectionConfig, logger rgpipe.Logger) (rgpipe.Connector, error) {
	provider, err := NewAWSTokenProvider(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), cfg.AWSRegion, cfg.Username)
	if err != nil {
		return nil, err
	}
	return NewTokenConnector(cfg, provider, "AWS IAM", logger), nil
}

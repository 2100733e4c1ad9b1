// Package identity checks which AWS principal the tool runs as.
package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	dserrors "github.com/systmms/secretseed/internal/errors"
)

// STSClientAPI defines the STS operation used here. This allows for mocking in tests.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Caller describes the resolved AWS principal
type Caller struct {
	Account string
	ARN     string
	UserID  string
	Region  string
}

// NewClient builds an STS client from a resolved AWS config
func NewClient(cfg aws.Config) *sts.Client {
	return sts.NewFromConfig(cfg)
}

// Resolve asks STS who the current credentials belong to
func Resolve(ctx context.Context, client STSClientAPI, region string) (Caller, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Caller{}, dserrors.UserError{
			Message:    "Unable to resolve AWS caller identity",
			Details:    err.Error(),
			Suggestion: "Configure AWS credentials: 'aws configure' or set AWS_PROFILE",
			Err:        err,
		}
	}

	caller := Caller{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
		Region:  region,
	}
	if caller.Account == "" {
		return caller, fmt.Errorf("STS returned no account for the current credentials")
	}
	return caller, nil
}

package workflow

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
)

// DescribeExecutionAPI is the subset of the Step Functions client used for polling.
type DescribeExecutionAPI interface {
	DescribeExecution(ctx context.Context, params *sfn.DescribeExecutionInput, optFns ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error)
}

// SFNStatusSource answers status queries with DescribeExecution.
type SFNStatusSource struct {
	client DescribeExecutionAPI
}

// Compile-time interface check.
var _ StatusSource = (*SFNStatusSource)(nil)

// NewSFNStatusSource wraps a Step Functions client.
func NewSFNStatusSource(client DescribeExecutionAPI) *SFNStatusSource {
	return &SFNStatusSource{client: client}
}

// Describe returns the execution's status, output, and error detail.
func (s *SFNStatusSource) Describe(ctx context.Context, handle JobHandle) (Status, error) {
	out, err := s.client.DescribeExecution(ctx, &sfn.DescribeExecutionInput{
		ExecutionArn: aws.String(string(handle)),
	})
	if err != nil {
		return Status{}, fmt.Errorf("DescribeExecution %s: %w", handle, err)
	}
	return Status{
		Status: string(out.Status),
		Output: aws.ToString(out.Output),
		Error:  aws.ToString(out.Error),
		Cause:  aws.ToString(out.Cause),
	}, nil
}

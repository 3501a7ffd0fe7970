package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/skyfell/reaper/types"
)

// listLambdaFunctions enumerates Lambda functions. LastModified stands
// in for a creation time; it is the only timestamp the API offers.
func (p *Provider) listLambdaFunctions(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := lambda.NewListFunctionsPaginator(p.lambdaClient, &lambda.ListFunctionsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list Lambda functions: %w", err)
		}

		for _, fn := range output.Functions {
			tags, err := p.lambdaTags(ctx, aws.ToString(fn.FunctionArn))
			if err != nil {
				return nil, err
			}
			resources = append(resources, types.Resource{
				ID:        aws.ToString(fn.FunctionName),
				Service:   types.ServiceLambda,
				Region:    p.region,
				Name:      aws.ToString(fn.FunctionName),
				Status:    string(fn.State),
				Tags:      tags,
				CreatedAt: parseLambdaTime(fn.LastModified),
			})
		}
	}

	return resources, nil
}

func (p *Provider) lambdaTags(ctx context.Context, arn string) (map[string]string, error) {
	output, err := p.lambdaClient.ListTags(ctx, &lambda.ListTagsInput{
		Resource: aws.String(arn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list Lambda tags: %w", err)
	}
	if len(output.Tags) == 0 {
		return nil, nil
	}
	return output.Tags, nil
}

func (p *Provider) deleteLambdaFunction(ctx context.Context, r types.Resource) error {
	_, err := p.lambdaClient.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: aws.String(r.ID),
	})
	return err
}

// listQueues enumerates SQS queues. The queue URL doubles as the
// identifier; creation time comes from the CreatedTimestamp attribute.
func (p *Provider) listQueues(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := sqs.NewListQueuesPaginator(p.sqsClient, &sqs.ListQueuesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list SQS queues: %w", err)
		}

		for _, url := range output.QueueUrls {
			attrs, err := p.sqsClient.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
				QueueUrl:       aws.String(url),
				AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameCreatedTimestamp},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to get queue attributes: %w", err)
			}

			tags, err := p.queueTags(ctx, url)
			if err != nil {
				return nil, err
			}

			resource := types.Resource{
				ID:      url,
				Service: types.ServiceSQS,
				Region:  p.region,
				Name:    queueName(url),
				Tags:    tags,
			}
			if created, ok := attrs.Attributes[string(sqstypes.QueueAttributeNameCreatedTimestamp)]; ok {
				resource.CreatedAt = parseEpochSeconds(created)
			}
			resources = append(resources, resource)
		}
	}

	return resources, nil
}

func (p *Provider) queueTags(ctx context.Context, url string) (map[string]string, error) {
	output, err := p.sqsClient.ListQueueTags(ctx, &sqs.ListQueueTagsInput{
		QueueUrl: aws.String(url),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list queue tags: %w", err)
	}
	if len(output.Tags) == 0 {
		return nil, nil
	}
	return output.Tags, nil
}

// queueName extracts the trailing name segment from a queue URL.
func queueName(url string) string {
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}

func (p *Provider) deleteQueue(ctx context.Context, r types.Resource) error {
	_, err := p.sqsClient.DeleteQueue(ctx, &sqs.DeleteQueueInput{
		QueueUrl: aws.String(r.ID),
	})
	return err
}

// listLogGroups enumerates CloudWatch log groups.
func (p *Provider) listLogGroups(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := cloudwatchlogs.NewDescribeLogGroupsPaginator(p.cwLogsClient, &cloudwatchlogs.DescribeLogGroupsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe log groups: %w", err)
		}

		for _, group := range output.LogGroups {
			tags, err := p.logGroupTags(ctx, aws.ToString(group.Arn))
			if err != nil {
				return nil, err
			}
			resources = append(resources, types.Resource{
				ID:        aws.ToString(group.LogGroupName),
				Service:   types.ServiceCloudWatchLogs,
				Region:    p.region,
				Name:      aws.ToString(group.LogGroupName),
				Tags:      tags,
				CreatedAt: millisTime(group.CreationTime),
			})
		}
	}

	return resources, nil
}

func (p *Provider) logGroupTags(ctx context.Context, arn string) (map[string]string, error) {
	// The describe ARN ends in ":*", which ListTagsForResource rejects.
	arn = strings.TrimSuffix(arn, ":*")
	output, err := p.cwLogsClient.ListTagsForResource(ctx, &cloudwatchlogs.ListTagsForResourceInput{
		ResourceArn: aws.String(arn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list log group tags: %w", err)
	}
	if len(output.Tags) == 0 {
		return nil, nil
	}
	return output.Tags, nil
}

func (p *Provider) deleteLogGroup(ctx context.Context, r types.Resource) error {
	_, err := p.cwLogsClient.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: aws.String(r.ID),
	})
	return err
}

// listKeys enumerates customer-managed KMS keys that are not already
// pending deletion. AWS-managed keys cannot be deleted and are skipped
// at enumeration rather than left to fail later.
func (p *Provider) listKeys(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := kms.NewListKeysPaginator(p.kmsClient, &kms.ListKeysInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list KMS keys: %w", err)
		}

		for _, entry := range output.Keys {
			keyID := aws.ToString(entry.KeyId)
			describe, err := p.kmsClient.DescribeKey(ctx, &kms.DescribeKeyInput{
				KeyId: aws.String(keyID),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to describe key %s: %w", keyID, err)
			}

			meta := describe.KeyMetadata
			if meta.KeyManager != kmstypes.KeyManagerTypeCustomer {
				continue
			}
			if meta.KeyState == kmstypes.KeyStatePendingDeletion {
				continue
			}

			tags, err := p.keyTags(ctx, keyID)
			if err != nil {
				return nil, err
			}

			resources = append(resources, types.Resource{
				ID:        keyID,
				Service:   types.ServiceKMS,
				Region:    p.region,
				Name:      aws.ToString(meta.Description),
				Status:    string(meta.KeyState),
				Tags:      tags,
				CreatedAt: safeTime(meta.CreationDate),
			})
		}
	}

	return resources, nil
}

func (p *Provider) keyTags(ctx context.Context, keyID string) (map[string]string, error) {
	output, err := p.kmsClient.ListResourceTags(ctx, &kms.ListResourceTagsInput{
		KeyId: aws.String(keyID),
	})
	if err != nil {
		// Key policies frequently deny tag listing; the key is still
		// deletable, so carry on without tags.
		return nil, nil
	}
	return convertKMSTags(output.Tags), nil
}

// scheduleKeyDeletion schedules the key for deletion after the minimum
// waiting period. KMS offers no immediate delete.
func (p *Provider) scheduleKeyDeletion(ctx context.Context, r types.Resource) error {
	_, err := p.kmsClient.ScheduleKeyDeletion(ctx, &kms.ScheduleKeyDeletionInput{
		KeyId:               aws.String(r.ID),
		PendingWindowInDays: aws.Int32(7),
	})
	return err
}

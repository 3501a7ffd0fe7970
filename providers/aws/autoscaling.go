package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"

	"github.com/skyfell/reaper/types"
)

// listAutoScalingGroups enumerates auto scaling groups. Groups delete
// first in the precedence order so they stop replacing the instances
// terminated after them.
func (p *Provider) listAutoScalingGroups(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := autoscaling.NewDescribeAutoScalingGroupsPaginator(p.asgClient, &autoscaling.DescribeAutoScalingGroupsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe auto scaling groups: %w", err)
		}

		for _, group := range output.AutoScalingGroups {
			resources = append(resources, types.Resource{
				ID:        aws.ToString(group.AutoScalingGroupName),
				Service:   types.ServiceAutoScaling,
				Region:    p.region,
				Name:      aws.ToString(group.AutoScalingGroupName),
				Status:    aws.ToString(group.Status),
				Tags:      convertASGTags(group.Tags),
				CreatedAt: safeTime(group.CreatedTime),
			})
		}
	}

	return resources, nil
}

// deleteAutoScalingGroup force-deletes the group, terminating its
// instances without waiting for scale-in.
func (p *Provider) deleteAutoScalingGroup(ctx context.Context, r types.Resource) error {
	_, err := p.asgClient.DeleteAutoScalingGroup(ctx, &autoscaling.DeleteAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(r.ID),
		ForceDelete:          aws.Bool(true),
	})
	return err
}

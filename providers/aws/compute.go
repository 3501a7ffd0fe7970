package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/skyfell/reaper/types"
)

// listInstances enumerates EC2 instances that are not already
// terminating. Terminated instances disappear on their own.
func (p *Provider) listInstances(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{
				Name:   aws.String("instance-state-name"),
				Values: []string{"pending", "running", "stopping", "stopped"},
			},
		},
	}

	paginator := ec2.NewDescribeInstancesPaginator(p.ec2Client, input)
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe EC2 instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				tags := convertEC2Tags(instance.Tags)
				resources = append(resources, types.Resource{
					ID:        aws.ToString(instance.InstanceId),
					Service:   types.ServiceEC2,
					Region:    p.region,
					Name:      tags["Name"],
					Status:    string(instance.State.Name),
					Tags:      tags,
					CreatedAt: safeTime(instance.LaunchTime),
				})
			}
		}
	}

	return resources, nil
}

func (p *Provider) terminateInstance(ctx context.Context, r types.Resource) error {
	_, err := p.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{r.ID},
	})
	return err
}

// listImages enumerates AMIs owned by this account.
func (p *Provider) listImages(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	input := &ec2.DescribeImagesInput{Owners: []string{"self"}}
	paginator := ec2.NewDescribeImagesPaginator(p.ec2Client, input)
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe AMIs: %w", err)
		}

		for _, image := range output.Images {
			resources = append(resources, types.Resource{
				ID:        aws.ToString(image.ImageId),
				Service:   types.ServiceAMI,
				Region:    p.region,
				Name:      aws.ToString(image.Name),
				Status:    string(image.State),
				Tags:      convertEC2Tags(image.Tags),
				CreatedAt: parseAMITime(image.CreationDate),
			})
		}
	}

	return resources, nil
}

func (p *Provider) deregisterImage(ctx context.Context, r types.Resource) error {
	_, err := p.ec2Client.DeregisterImage(ctx, &ec2.DeregisterImageInput{
		ImageId: aws.String(r.ID),
	})
	return err
}

// listSnapshots enumerates EBS snapshots owned by this account.
func (p *Provider) listSnapshots(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	input := &ec2.DescribeSnapshotsInput{OwnerIds: []string{"self"}}
	paginator := ec2.NewDescribeSnapshotsPaginator(p.ec2Client, input)
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe snapshots: %w", err)
		}

		for _, snapshot := range output.Snapshots {
			resources = append(resources, types.Resource{
				ID:        aws.ToString(snapshot.SnapshotId),
				Service:   types.ServiceSnapshot,
				Region:    p.region,
				Status:    string(snapshot.State),
				Tags:      convertEC2Tags(snapshot.Tags),
				CreatedAt: safeTime(snapshot.StartTime),
			})
		}
	}

	return resources, nil
}

func (p *Provider) deleteSnapshot(ctx context.Context, r types.Resource) error {
	_, err := p.ec2Client.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
		SnapshotId: aws.String(r.ID),
	})
	return err
}

// listVolumes enumerates detached EBS volumes. Attached volumes go away
// with their instance; deleting them directly would only produce
// VolumeInUse errors.
func (p *Provider) listVolumes(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	input := &ec2.DescribeVolumesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("status"), Values: []string{"available"}},
		},
	}

	paginator := ec2.NewDescribeVolumesPaginator(p.ec2Client, input)
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe volumes: %w", err)
		}

		for _, volume := range output.Volumes {
			tags := convertEC2Tags(volume.Tags)
			resources = append(resources, types.Resource{
				ID:        aws.ToString(volume.VolumeId),
				Service:   types.ServiceEBS,
				Region:    p.region,
				Name:      tags["Name"],
				Status:    string(volume.State),
				Tags:      tags,
				CreatedAt: safeTime(volume.CreateTime),
			})
		}
	}

	return resources, nil
}

func (p *Provider) deleteVolume(ctx context.Context, r types.Resource) error {
	_, err := p.ec2Client.DeleteVolume(ctx, &ec2.DeleteVolumeInput{
		VolumeId: aws.String(r.ID),
	})
	return err
}

// listKeyPairs enumerates key pairs. The API exposes no creation date,
// so CreatedAt stays nil and only include/exclude/tag filtering applies.
func (p *Provider) listKeyPairs(ctx context.Context) ([]types.Resource, error) {
	output, err := p.ec2Client.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe key pairs: %w", err)
	}

	var resources []types.Resource
	for _, keypair := range output.KeyPairs {
		resources = append(resources, types.Resource{
			ID:      aws.ToString(keypair.KeyName),
			Service: types.ServiceKeyPair,
			Region:  p.region,
			Name:    aws.ToString(keypair.KeyName),
			Tags:    convertEC2Tags(keypair.Tags),
		})
	}

	return resources, nil
}

func (p *Provider) deleteKeyPair(ctx context.Context, r types.Resource) error {
	_, err := p.ec2Client.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyName: aws.String(r.ID),
	})
	return err
}

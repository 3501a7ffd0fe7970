package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/skyfell/reaper/types"
)

// listEKSClusters enumerates EKS clusters. ListClusters only returns
// names, so every cluster costs one DescribeCluster call for its
// creation time and tags.
func (p *Provider) listEKSClusters(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := eks.NewListClustersPaginator(p.eksClient, &eks.ListClustersInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list EKS clusters: %w", err)
		}

		for _, name := range output.Clusters {
			describe, err := p.eksClient.DescribeCluster(ctx, &eks.DescribeClusterInput{
				Name: aws.String(name),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to describe EKS cluster %s: %w", name, err)
			}

			cluster := describe.Cluster
			resources = append(resources, types.Resource{
				ID:        name,
				Service:   types.ServiceEKS,
				Region:    p.region,
				Name:      name,
				Status:    string(cluster.Status),
				Tags:      cluster.Tags,
				CreatedAt: safeTime(cluster.CreatedAt),
			})
		}
	}

	return resources, nil
}

// deleteEKSCluster deletes the control plane. Node groups attached to
// the cluster make this fail with a retryable dependency error until
// their auto scaling groups are gone.
func (p *Provider) deleteEKSCluster(ctx context.Context, r types.Resource) error {
	_, err := p.eksClient.DeleteCluster(ctx, &eks.DeleteClusterInput{
		Name: aws.String(r.ID),
	})
	return err
}

// listRepositories enumerates ECR repositories.
func (p *Provider) listRepositories(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ecr.NewDescribeRepositoriesPaginator(p.ecrClient, &ecr.DescribeRepositoriesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe ECR repositories: %w", err)
		}

		for _, repo := range output.Repositories {
			tags, err := p.repositoryTags(ctx, aws.ToString(repo.RepositoryArn))
			if err != nil {
				return nil, err
			}
			resources = append(resources, types.Resource{
				ID:        aws.ToString(repo.RepositoryName),
				Service:   types.ServiceECR,
				Region:    p.region,
				Name:      aws.ToString(repo.RepositoryName),
				Tags:      tags,
				CreatedAt: safeTime(repo.CreatedAt),
			})
		}
	}

	return resources, nil
}

func (p *Provider) repositoryTags(ctx context.Context, arn string) (map[string]string, error) {
	output, err := p.ecrClient.ListTagsForResource(ctx, &ecr.ListTagsForResourceInput{
		ResourceArn: aws.String(arn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ECR repository tags: %w", err)
	}
	return convertECRTags(output.Tags), nil
}

// deleteRepository force-deletes the repository along with every image
// in it.
func (p *Provider) deleteRepository(ctx context.Context, r types.Resource) error {
	_, err := p.ecrClient.DeleteRepository(ctx, &ecr.DeleteRepositoryInput{
		RepositoryName: aws.String(r.ID),
		Force:          true,
	})
	return err
}

package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"

	"github.com/skyfell/reaper/types"
)

// listDBInstances enumerates RDS instances. Tags ride along on the
// describe response, no extra call needed.
func (p *Provider) listDBInstances(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := rds.NewDescribeDBInstancesPaginator(p.rdsClient, &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe DB instances: %w", err)
		}

		for _, db := range output.DBInstances {
			resources = append(resources, types.Resource{
				ID:        aws.ToString(db.DBInstanceIdentifier),
				Service:   types.ServiceRDS,
				Region:    p.region,
				Name:      aws.ToString(db.DBInstanceIdentifier),
				Status:    aws.ToString(db.DBInstanceStatus),
				Tags:      convertRDSTags(db.TagList),
				CreatedAt: safeTime(db.InstanceCreateTime),
			})
		}
	}

	return resources, nil
}

// deleteDBInstance deletes without a final snapshot. The point of the
// engine is to leave nothing behind, snapshots included.
func (p *Provider) deleteDBInstance(ctx context.Context, r types.Resource) error {
	_, err := p.rdsClient.DeleteDBInstance(ctx, &rds.DeleteDBInstanceInput{
		DBInstanceIdentifier:   aws.String(r.ID),
		SkipFinalSnapshot:      aws.Bool(true),
		DeleteAutomatedBackups: aws.Bool(true),
	})
	return err
}

// listDynamoDBTables enumerates tables. ListTables only returns names;
// DescribeTable supplies the creation time and ListTagsOfResource the
// tags.
func (p *Provider) listDynamoDBTables(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := dynamodb.NewListTablesPaginator(p.dynamoClient, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list DynamoDB tables: %w", err)
		}

		for _, name := range output.TableNames {
			describe, err := p.dynamoClient.DescribeTable(ctx, &dynamodb.DescribeTableInput{
				TableName: aws.String(name),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to describe table %s: %w", name, err)
			}

			table := describe.Table
			tags, err := p.tableTags(ctx, aws.ToString(table.TableArn))
			if err != nil {
				return nil, err
			}

			resources = append(resources, types.Resource{
				ID:        name,
				Service:   types.ServiceDynamoDB,
				Region:    p.region,
				Name:      name,
				Status:    string(table.TableStatus),
				Tags:      tags,
				CreatedAt: safeTime(table.CreationDateTime),
			})
		}
	}

	return resources, nil
}

func (p *Provider) tableTags(ctx context.Context, arn string) (map[string]string, error) {
	output, err := p.dynamoClient.ListTagsOfResource(ctx, &dynamodb.ListTagsOfResourceInput{
		ResourceArn: aws.String(arn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list table tags: %w", err)
	}
	if len(output.Tags) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(output.Tags))
	for _, tag := range output.Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return tags, nil
}

func (p *Provider) deleteDynamoDBTable(ctx context.Context, r types.Resource) error {
	_, err := p.dynamoClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(r.ID),
	})
	return err
}

// listRedshiftClusters enumerates Redshift clusters.
func (p *Provider) listRedshiftClusters(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := redshift.NewDescribeClustersPaginator(p.redshiftClient, &redshift.DescribeClustersInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe Redshift clusters: %w", err)
		}

		for _, cluster := range output.Clusters {
			resources = append(resources, types.Resource{
				ID:        aws.ToString(cluster.ClusterIdentifier),
				Service:   types.ServiceRedshift,
				Region:    p.region,
				Name:      aws.ToString(cluster.ClusterIdentifier),
				Status:    aws.ToString(cluster.ClusterStatus),
				Tags:      convertRedshiftTags(cluster.Tags),
				CreatedAt: safeTime(cluster.ClusterCreateTime),
			})
		}
	}

	return resources, nil
}

func (p *Provider) deleteRedshiftCluster(ctx context.Context, r types.Resource) error {
	_, err := p.redshiftClient.DeleteCluster(ctx, &redshift.DeleteClusterInput{
		ClusterIdentifier:        aws.String(r.ID),
		SkipFinalClusterSnapshot: aws.Bool(true),
	})
	return err
}

package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/skyfell/reaper/types"
)

// listSecurityGroups enumerates security groups except the VPC default,
// which AWS refuses to delete. The API exposes no creation date, so
// CreatedAt stays nil.
func (p *Provider) listSecurityGroups(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ec2.NewDescribeSecurityGroupsPaginator(p.ec2Client, &ec2.DescribeSecurityGroupsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe security groups: %w", err)
		}

		for _, group := range output.SecurityGroups {
			if aws.ToString(group.GroupName) == "default" {
				continue
			}
			resources = append(resources, types.Resource{
				ID:      aws.ToString(group.GroupId),
				Service: types.ServiceSecurityGroup,
				Region:  p.region,
				Name:    aws.ToString(group.GroupName),
				Tags:    convertEC2Tags(group.Tags),
			})
		}
	}

	return resources, nil
}

func (p *Provider) deleteSecurityGroup(ctx context.Context, r types.Resource) error {
	_, err := p.ec2Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(r.ID),
	})
	return err
}

// listAddresses enumerates Elastic IPs. Addresses have no creation
// date; an associated address will fail release with a retryable error
// until its instance is terminated.
func (p *Provider) listAddresses(ctx context.Context) ([]types.Resource, error) {
	output, err := p.ec2Client.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe addresses: %w", err)
	}

	var resources []types.Resource
	for _, address := range output.Addresses {
		status := "unassociated"
		if address.AssociationId != nil {
			status = "associated"
		}
		resources = append(resources, types.Resource{
			ID:      aws.ToString(address.AllocationId),
			Service: types.ServiceElasticIP,
			Region:  p.region,
			Name:    aws.ToString(address.PublicIp),
			Status:  status,
			Tags:    convertEC2Tags(address.Tags),
		})
	}

	return resources, nil
}

func (p *Provider) releaseAddress(ctx context.Context, r types.Resource) error {
	_, err := p.ec2Client.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{
		AllocationId: aws.String(r.ID),
	})
	return err
}

// listNetworkAcls enumerates network ACLs except each VPC's default,
// which AWS refuses to delete. Like security groups, the API exposes no
// creation date.
func (p *Provider) listNetworkAcls(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ec2.NewDescribeNetworkAclsPaginator(p.ec2Client, &ec2.DescribeNetworkAclsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe network ACLs: %w", err)
		}

		for _, acl := range output.NetworkAcls {
			if aws.ToBool(acl.IsDefault) {
				continue
			}
			tags := convertEC2Tags(acl.Tags)
			resources = append(resources, types.Resource{
				ID:      aws.ToString(acl.NetworkAclId),
				Service: types.ServiceNetworkACL,
				Region:  p.region,
				Name:    tags["Name"],
				Tags:    tags,
			})
		}
	}

	return resources, nil
}

func (p *Provider) deleteNetworkAcl(ctx context.Context, r types.Resource) error {
	_, err := p.ec2Client.DeleteNetworkAcl(ctx, &ec2.DeleteNetworkAclInput{
		NetworkAclId: aws.String(r.ID),
	})
	return err
}

// listVpcEndpoints enumerates VPC endpoints.
func (p *Provider) listVpcEndpoints(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := ec2.NewDescribeVpcEndpointsPaginator(p.ec2Client, &ec2.DescribeVpcEndpointsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe VPC endpoints: %w", err)
		}

		for _, endpoint := range output.VpcEndpoints {
			tags := convertEC2Tags(endpoint.Tags)
			resources = append(resources, types.Resource{
				ID:        aws.ToString(endpoint.VpcEndpointId),
				Service:   types.ServiceVPCEndpoint,
				Region:    p.region,
				Name:      tags["Name"],
				Status:    string(endpoint.State),
				Tags:      tags,
				CreatedAt: safeTime(endpoint.CreationTimestamp),
			})
		}
	}

	return resources, nil
}

func (p *Provider) deleteVpcEndpoint(ctx context.Context, r types.Resource) error {
	_, err := p.ec2Client.DeleteVpcEndpoints(ctx, &ec2.DeleteVpcEndpointsInput{
		VpcEndpointIds: []string{r.ID},
	})
	return err
}

// listLoadBalancers enumerates ALBs and NLBs. Tags come from a second
// call because DescribeLoadBalancers does not include them.
func (p *Provider) listLoadBalancers(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	paginator := elasticloadbalancingv2.NewDescribeLoadBalancersPaginator(p.elbClient, &elasticloadbalancingv2.DescribeLoadBalancersInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe load balancers: %w", err)
		}

		for _, lb := range output.LoadBalancers {
			arn := aws.ToString(lb.LoadBalancerArn)
			tags, err := p.loadBalancerTags(ctx, arn)
			if err != nil {
				return nil, err
			}

			resource := types.Resource{
				ID:        arn,
				Service:   types.ServiceLoadBalancer,
				Region:    p.region,
				Name:      aws.ToString(lb.LoadBalancerName),
				Tags:      tags,
				CreatedAt: safeTime(lb.CreatedTime),
			}
			if lb.State != nil {
				resource.Status = string(lb.State.Code)
			}
			resources = append(resources, resource)
		}
	}

	return resources, nil
}

func (p *Provider) loadBalancerTags(ctx context.Context, arn string) (map[string]string, error) {
	output, err := p.elbClient.DescribeTags(ctx, &elasticloadbalancingv2.DescribeTagsInput{
		ResourceArns: []string{arn},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe load balancer tags: %w", err)
	}
	for _, desc := range output.TagDescriptions {
		return convertELBTags(desc.Tags), nil
	}
	return nil, nil
}

func (p *Provider) deleteLoadBalancer(ctx context.Context, r types.Resource) error {
	_, err := p.elbClient.DeleteLoadBalancer(ctx, &elasticloadbalancingv2.DeleteLoadBalancerInput{
		LoadBalancerArn: aws.String(r.ID),
	})
	return err
}

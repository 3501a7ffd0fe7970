// Package aws implements the provider boundary with aws-sdk-go-v2.
// Each supported service gets a lister that paginates transparently and
// a deleter that issues the single irreversible delete call.
package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/skyfell/reaper/providers"
	"github.com/skyfell/reaper/types"
)

func init() {
	providers.RegisterProvider("aws", func(ctx context.Context, cfg providers.ProviderConfig) (providers.CloudProvider, error) {
		return NewProvider(ctx, cfg.Region)
	})
}

// Provider enumerates and deletes AWS resources in a single region.
type Provider struct {
	region string

	ec2Client      *ec2.Client
	asgClient      *autoscaling.Client
	elbClient      *elasticloadbalancingv2.Client
	eksClient      *eks.Client
	lambdaClient   *lambda.Client
	sqsClient      *sqs.Client
	rdsClient      *rds.Client
	dynamoClient   *dynamodb.Client
	redshiftClient *redshift.Client
	ecrClient      *ecr.Client
	s3Client       *s3.Client
	cwLogsClient   *cloudwatchlogs.Client
	kmsClient      *kms.Client
}

// NewProvider creates a provider for one region using the default
// credential chain.
func NewProvider(ctx context.Context, region string) (*Provider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Provider{
		region:         region,
		ec2Client:      ec2.NewFromConfig(cfg),
		asgClient:      autoscaling.NewFromConfig(cfg),
		elbClient:      elasticloadbalancingv2.NewFromConfig(cfg),
		eksClient:      eks.NewFromConfig(cfg),
		lambdaClient:   lambda.NewFromConfig(cfg),
		sqsClient:      sqs.NewFromConfig(cfg),
		rdsClient:      rds.NewFromConfig(cfg),
		dynamoClient:   dynamodb.NewFromConfig(cfg),
		redshiftClient: redshift.NewFromConfig(cfg),
		ecrClient:      ecr.NewFromConfig(cfg),
		s3Client:       s3.NewFromConfig(cfg),
		cwLogsClient:   cloudwatchlogs.NewFromConfig(cfg),
		kmsClient:      kms.NewFromConfig(cfg),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "aws"
}

// Region returns the provider's region.
func (p *Provider) Region() string {
	return p.region
}

type lister func(ctx context.Context) ([]types.Resource, error)
type deleter func(ctx context.Context, r types.Resource) error

func (p *Provider) listers() map[types.Service]lister {
	return map[types.Service]lister{
		types.ServiceAutoScaling:    p.listAutoScalingGroups,
		types.ServiceLoadBalancer:   p.listLoadBalancers,
		types.ServiceEKS:            p.listEKSClusters,
		types.ServiceEC2:            p.listInstances,
		types.ServiceLambda:         p.listLambdaFunctions,
		types.ServiceSQS:            p.listQueues,
		types.ServiceRDS:            p.listDBInstances,
		types.ServiceDynamoDB:       p.listDynamoDBTables,
		types.ServiceRedshift:       p.listRedshiftClusters,
		types.ServiceECR:            p.listRepositories,
		types.ServiceAMI:            p.listImages,
		types.ServiceSnapshot:       p.listSnapshots,
		types.ServiceEBS:            p.listVolumes,
		types.ServiceElasticIP:      p.listAddresses,
		types.ServiceVPCEndpoint:    p.listVpcEndpoints,
		types.ServiceKeyPair:        p.listKeyPairs,
		types.ServiceSecurityGroup:  p.listSecurityGroups,
		types.ServiceNetworkACL:     p.listNetworkAcls,
		types.ServiceS3:             p.listBuckets,
		types.ServiceCloudWatchLogs: p.listLogGroups,
		types.ServiceKMS:            p.listKeys,
	}
}

func (p *Provider) deleters() map[types.Service]deleter {
	return map[types.Service]deleter{
		types.ServiceAutoScaling:    p.deleteAutoScalingGroup,
		types.ServiceLoadBalancer:   p.deleteLoadBalancer,
		types.ServiceEKS:            p.deleteEKSCluster,
		types.ServiceEC2:            p.terminateInstance,
		types.ServiceLambda:         p.deleteLambdaFunction,
		types.ServiceSQS:            p.deleteQueue,
		types.ServiceRDS:            p.deleteDBInstance,
		types.ServiceDynamoDB:       p.deleteDynamoDBTable,
		types.ServiceRedshift:       p.deleteRedshiftCluster,
		types.ServiceECR:            p.deleteRepository,
		types.ServiceAMI:            p.deregisterImage,
		types.ServiceSnapshot:       p.deleteSnapshot,
		types.ServiceEBS:            p.deleteVolume,
		types.ServiceElasticIP:      p.releaseAddress,
		types.ServiceVPCEndpoint:    p.deleteVpcEndpoint,
		types.ServiceKeyPair:        p.deleteKeyPair,
		types.ServiceSecurityGroup:  p.deleteSecurityGroup,
		types.ServiceNetworkACL:     p.deleteNetworkAcl,
		types.ServiceS3:             p.deleteBucket,
		types.ServiceCloudWatchLogs: p.deleteLogGroup,
		types.ServiceKMS:            p.scheduleKeyDeletion,
	}
}

// ListResources enumerates every resource of the service in the region.
func (p *Provider) ListResources(ctx context.Context, service types.Service) ([]types.Resource, error) {
	list, ok := p.listers()[service]
	if !ok {
		return nil, fmt.Errorf("service %s not supported by aws provider", service)
	}

	resources, err := list(ctx)
	if err != nil {
		return nil, &providers.ServiceUnavailableError{Service: service, Region: p.region, Err: err}
	}
	return resources, nil
}

// DeleteResource issues the owning service's delete operation.
func (p *Provider) DeleteResource(ctx context.Context, resource types.Resource) error {
	del, ok := p.deleters()[resource.Service]
	if !ok {
		return fmt.Errorf("service %s not supported by aws provider", resource.Service)
	}
	return del(ctx, resource)
}

// safeTime converts an optional SDK timestamp into the descriptor form.
func safeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ts := *t
	return &ts
}

// Ensure Provider implements CloudProvider.
var _ providers.CloudProvider = (*Provider)(nil)

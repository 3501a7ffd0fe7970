package types

import (
	"fmt"
	"sort"
	"strings"
)

// Service is a strongly-typed AWS service kind supported by the engine.
type Service string

const (
	ServiceAutoScaling    Service = "autoscaling"
	ServiceLoadBalancer   Service = "elb"
	ServiceEKS            Service = "eks"
	ServiceEC2            Service = "ec2"
	ServiceLambda         Service = "lambda"
	ServiceSQS            Service = "sqs"
	ServiceRDS            Service = "rds"
	ServiceDynamoDB       Service = "dynamodb"
	ServiceRedshift       Service = "redshift"
	ServiceECR            Service = "ecr"
	ServiceAMI            Service = "ami"
	ServiceSnapshot       Service = "snapshot"
	ServiceEBS            Service = "ebs"
	ServiceKeyPair        Service = "key_pair"
	ServiceSecurityGroup  Service = "security_group"
	ServiceNetworkACL     Service = "network_acl"
	ServiceVPCEndpoint    Service = "vpc_endpoint"
	ServiceElasticIP      Service = "eip"
	ServiceS3             Service = "s3"
	ServiceCloudWatchLogs Service = "cloudwatch_logs"
	ServiceKMS            Service = "kms"
)

// Category groups services the way the cloud consoles do.
type Category string

const (
	CategoryCompute    Category = "compute"
	CategoryStorage    Category = "storage"
	CategoryDatabase   Category = "database"
	CategoryNetwork    Category = "network"
	CategoryMessaging  Category = "messaging"
	CategoryGovernance Category = "governance"
)

// precedence orders deletions so that dependents go before their
// dependencies: scaling groups before instances, instances before
// volumes and security groups, images before snapshots. This is a
// static table, not a dependency graph; ordering misses surface as
// retryable DependencyViolation errors.
var precedence = map[Service]int{
	ServiceAutoScaling:    10,
	ServiceLoadBalancer:   20,
	ServiceEKS:            30,
	ServiceEC2:            40,
	ServiceLambda:         50,
	ServiceSQS:            55,
	ServiceRDS:            60,
	ServiceDynamoDB:       65,
	ServiceRedshift:       70,
	ServiceECR:            80,
	ServiceAMI:            85,
	ServiceSnapshot:       90,
	ServiceEBS:            95,
	ServiceElasticIP:      100,
	ServiceVPCEndpoint:    102,
	ServiceKeyPair:        105,
	ServiceSecurityGroup:  110,
	ServiceNetworkACL:     112,
	ServiceS3:             115,
	ServiceCloudWatchLogs: 120,
	ServiceKMS:            125,
}

var categories = map[Service]Category{
	ServiceAutoScaling:    CategoryCompute,
	ServiceLoadBalancer:   CategoryNetwork,
	ServiceEKS:            CategoryCompute,
	ServiceEC2:            CategoryCompute,
	ServiceLambda:         CategoryCompute,
	ServiceSQS:            CategoryMessaging,
	ServiceRDS:            CategoryDatabase,
	ServiceDynamoDB:       CategoryDatabase,
	ServiceRedshift:       CategoryDatabase,
	ServiceECR:            CategoryCompute,
	ServiceAMI:            CategoryCompute,
	ServiceSnapshot:       CategoryStorage,
	ServiceEBS:            CategoryStorage,
	ServiceKeyPair:        CategoryCompute,
	ServiceSecurityGroup:  CategoryNetwork,
	ServiceNetworkACL:     CategoryNetwork,
	ServiceVPCEndpoint:    CategoryNetwork,
	ServiceElasticIP:      CategoryNetwork,
	ServiceS3:             CategoryStorage,
	ServiceCloudWatchLogs: CategoryGovernance,
	ServiceKMS:            CategoryGovernance,
}

// timestampless services carry no creation date in their describe APIs.
var timestampless = map[Service]bool{
	ServiceKeyPair:       true,
	ServiceSecurityGroup: true,
	ServiceNetworkACL:    true,
}

// ParseService converts a configuration string into a Service.
// Unknown names are a configuration error, never silently ignored.
func ParseService(s string) (Service, error) {
	svc := Service(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := precedence[svc]; !ok {
		return "", fmt.Errorf("unknown service %q", s)
	}
	return svc, nil
}

// AllServices returns every supported service in deletion precedence order.
func AllServices() []Service {
	services := make([]Service, 0, len(precedence))
	for svc := range precedence {
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool {
		return precedence[services[i]] < precedence[services[j]]
	})
	return services
}

// Precedence returns the deletion rank of the service; lower goes first.
func (s Service) Precedence() int {
	return precedence[s]
}

// Category returns the service's console category.
func (s Service) Category() Category {
	return categories[s]
}

// HasCreationTimestamp reports whether the service's API exposes a
// creation date. Key pairs, security groups and network ACLs do not.
func (s Service) HasCreationTimestamp() bool {
	return !timestampless[s]
}

func (s Service) String() string {
	return string(s)
}

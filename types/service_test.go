package types

import (
	"testing"
	"time"
)

func TestParseService(t *testing.T) {
	tests := []struct {
		input   string
		want    Service
		wantErr bool
	}{
		{"ec2", ServiceEC2, false},
		{" EC2 ", ServiceEC2, false},
		{"key_pair", ServiceKeyPair, false},
		{"cloudwatch_logs", ServiceCloudWatchLogs, false},
		{"elasticsearch", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseService(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseService(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseService(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAllServicesPrecedenceOrder(t *testing.T) {
	services := AllServices()
	if len(services) != 21 {
		t.Fatalf("AllServices() returned %d services, want 21", len(services))
	}

	for i := 1; i < len(services); i++ {
		if services[i-1].Precedence() >= services[i].Precedence() {
			t.Errorf("precedence not strictly increasing at %s -> %s", services[i-1], services[i])
		}
	}

	// Scaling groups must go before the instances they manage.
	if ServiceAutoScaling.Precedence() >= ServiceEC2.Precedence() {
		t.Error("autoscaling must precede ec2")
	}
	// Instances must go before the volumes and security groups they hold.
	if ServiceEC2.Precedence() >= ServiceEBS.Precedence() {
		t.Error("ec2 must precede ebs")
	}
	if ServiceEC2.Precedence() >= ServiceSecurityGroup.Precedence() {
		t.Error("ec2 must precede security_group")
	}
	// Endpoints and network ACLs hang off VPC plumbing that instances use.
	if ServiceEC2.Precedence() >= ServiceVPCEndpoint.Precedence() {
		t.Error("ec2 must precede vpc_endpoint")
	}
	if ServiceSecurityGroup.Precedence() >= ServiceNetworkACL.Precedence() {
		t.Error("security_group must precede network_acl")
	}
}

func TestHasCreationTimestamp(t *testing.T) {
	if ServiceKeyPair.HasCreationTimestamp() {
		t.Error("key_pair should have no creation timestamp")
	}
	if ServiceSecurityGroup.HasCreationTimestamp() {
		t.Error("security_group should have no creation timestamp")
	}
	if ServiceNetworkACL.HasCreationTimestamp() {
		t.Error("network_acl should have no creation timestamp")
	}
	if !ServiceVPCEndpoint.HasCreationTimestamp() {
		t.Error("vpc_endpoint should have a creation timestamp")
	}
	if !ServiceEC2.HasCreationTimestamp() {
		t.Error("ec2 should have a creation timestamp")
	}
}

func TestResourceAge(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-72 * time.Hour)

	r := Resource{ID: "i-123", Service: ServiceEC2, CreatedAt: &created}
	age, ok := r.Age(now)
	if !ok {
		t.Fatal("Age() ok = false for resource with timestamp")
	}
	if age != 72*time.Hour {
		t.Errorf("Age() = %v, want 72h", age)
	}

	kp := Resource{ID: "deployer", Service: ServiceKeyPair}
	if _, ok := kp.Age(now); ok {
		t.Error("Age() ok = true for resource without timestamp")
	}
}

package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/skyfell/reaper/types"
)

// listBuckets enumerates buckets homed in this provider's region.
// ListBuckets is global, so each bucket needs a location check before
// it counts.
func (p *Provider) listBuckets(ctx context.Context) ([]types.Resource, error) {
	output, err := p.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	var resources []types.Resource
	for _, bucket := range output.Buckets {
		name := aws.ToString(bucket.Name)

		region, err := p.bucketRegion(ctx, name)
		if err != nil {
			return nil, err
		}
		if region != p.region {
			continue
		}

		tags, err := p.bucketTags(ctx, name)
		if err != nil {
			return nil, err
		}

		resources = append(resources, types.Resource{
			ID:        name,
			Service:   types.ServiceS3,
			Region:    p.region,
			Name:      name,
			Tags:      tags,
			CreatedAt: safeTime(bucket.CreationDate),
		})
	}

	return resources, nil
}

func (p *Provider) bucketRegion(ctx context.Context, name string) (string, error) {
	output, err := p.s3Client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get bucket location for %s: %w", name, err)
	}
	// us-east-1 reports an empty location constraint.
	if output.LocationConstraint == "" {
		return "us-east-1", nil
	}
	return string(output.LocationConstraint), nil
}

func (p *Provider) bucketTags(ctx context.Context, name string) (map[string]string, error) {
	output, err := p.s3Client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		// Untagged buckets return NoSuchTagSet rather than an empty set.
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchTagSet" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bucket tagging for %s: %w", name, err)
	}
	return convertS3Tags(output.TagSet), nil
}

// deleteBucket empties the bucket, including every object version and
// delete marker, then removes it. DeleteBucket refuses non-empty
// buckets, so the emptying pass is mandatory.
func (p *Provider) deleteBucket(ctx context.Context, r types.Resource) error {
	if err := p.emptyBucket(ctx, r.ID); err != nil {
		return err
	}
	_, err := p.s3Client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(r.ID),
	})
	return err
}

func (p *Provider) emptyBucket(ctx context.Context, name string) error {
	input := &s3.ListObjectVersionsInput{Bucket: aws.String(name)}
	for {
		output, err := p.s3Client.ListObjectVersions(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to list object versions in %s: %w", name, err)
		}

		var objects []s3types.ObjectIdentifier
		for _, version := range output.Versions {
			objects = append(objects, s3types.ObjectIdentifier{
				Key:       version.Key,
				VersionId: version.VersionId,
			})
		}
		for _, marker := range output.DeleteMarkers {
			objects = append(objects, s3types.ObjectIdentifier{
				Key:       marker.Key,
				VersionId: marker.VersionId,
			})
		}

		if len(objects) > 0 {
			_, err = p.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(name),
				Delete: &s3types.Delete{
					Objects: objects,
					Quiet:   aws.Bool(true),
				},
			})
			if err != nil {
				return fmt.Errorf("failed to delete objects in %s: %w", name, err)
			}
		}

		if !aws.ToBool(output.IsTruncated) {
			return nil
		}
		input.KeyMarker = output.NextKeyMarker
		input.VersionIdMarker = output.NextVersionIdMarker
	}
}

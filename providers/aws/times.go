package aws

import (
	"strconv"
	"time"
)

// Some AWS APIs return creation times as strings rather than
// timestamps. Parse failures map to nil so the filter pipeline treats
// the resource as timestampless instead of brand new.

// parseAMITime parses the RFC3339 CreationDate string on AMIs.
func parseAMITime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}

// parseLambdaTime parses Lambda's LastModified format, RFC3339 with
// milliseconds and a numeric zone offset.
func parseLambdaTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.999-0700", *s)
	if err != nil {
		return nil
	}
	return &t
}

// parseEpochSeconds parses an epoch-seconds string, the format SQS uses
// for the CreatedTimestamp queue attribute.
func parseEpochSeconds(s string) *time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}

// millisTime converts epoch milliseconds, the CloudWatch Logs
// CreationTime representation.
func millisTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

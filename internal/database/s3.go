package database

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client builds a client for region. A non-empty endpoint selects
// path-style addressing against a local emulator.
func NewS3Client(ctx context.Context, region, endpoint string, httpClient *http.Client) (*s3.Client, error) {
	cfg, err := loadAWSConfig(ctx, region, endpoint, httpClient)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

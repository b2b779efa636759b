package publish

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tabletools/tabcat/pkg/walden"
	"github.com/tabletools/tabcat/tcapi"
)

// S3Pusher publishes catalog files to an S3-compatible bucket.
type S3Pusher struct {
	client *s3.Client
	bucket string
}

// NewS3Pusher builds a pusher from the store configuration and verifies
// the bucket is reachable before any work starts.
//
// Errors:
//
//    - tabcat-error-unknown -- when object storage configuration fails
//    - tabcat-error-io -- when the bucket cannot be accessed
func NewS3Pusher(ctx context.Context, cfg walden.Config) (*S3Pusher, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		region := cfg.Region
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, _ string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true,
					SigningRegion:     region,
				}, nil
			})))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, tcapi.ErrorUnknown("could not load object storage configuration", err)
	}
	client := s3.NewFromConfig(awsCfg)

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, tcapi.ErrorIo("accessing bucket", cfg.Bucket, err)
	}
	return &S3Pusher{client: client, bucket: cfg.Bucket}, nil
}

// Has checks for the key with a HEAD request.
//
// Errors:
//
//    - tabcat-error-io -- when the remote cannot be queried
func (p *S3Pusher) Has(ctx context.Context, key string) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var responseError *awshttp.ResponseError
		if errors.As(err, &responseError) && responseError.ResponseError.HTTPStatusCode() == http.StatusNotFound {
			return false, nil
		}
		return false, tcapi.ErrorIo("querying remote object", key, err)
	}
	return true, nil
}

// Push uploads a file to the key, marking it world-readable when public.
//
// Errors:
//
//    - tabcat-error-io -- when the local file cannot be read
//    - tabcat-error-upload -- when the upload fails
func (p *S3Pusher) Push(ctx context.Context, key string, localPath string, public bool) error {
	f, err := os.Open(localPath)
	if err != nil {
		return tcapi.ErrorIo("opening file for upload", localPath, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if public {
		input.ACL = s3types.ObjectCannedACLPublicRead
	}
	uploader := manager.NewUploader(p.client)
	if _, err := uploader.Upload(ctx, input); err != nil {
		return tcapi.ErrorUpload("s3://"+p.bucket+"/"+key, err)
	}
	return nil
}

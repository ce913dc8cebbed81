package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"
)

// deleteBatchSize is the S3 DeleteObjects per-request key limit.
const deleteBatchSize = 1000

// deleteWorkers bounds concurrent DeleteObjects calls during DeleteAll.
const deleteWorkers = 4

// S3API abstracts the S3 operations used by S3Store.
// The s3.Client type satisfies this interface.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds the connection settings for an S3 or S3-compatible
// endpoint (MinIO, R2, etc.).
type S3Config struct {
	// EndpointURL overrides the AWS endpoint, e.g. "http://127.0.0.1:9000".
	// Leave empty for real AWS S3.
	EndpointURL string
	Region      string
	AccessKey   string
	SecretKey   string
}

// Connect builds an s3.Client from the given config.
func Connect(config S3Config) *s3.Client {
	return s3.NewFromConfig(aws.Config{Region: config.Region}, func(o *s3.Options) {
		if config.EndpointURL != "" {
			o.BaseEndpoint = aws.String(config.EndpointURL)
			// Compatible servers route by path, not virtual-hosted bucket names.
			o.UsePathStyle = true
		}
		if config.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, "")
		}
	})
}

// S3Store implements domain.BlobStore backed by Amazon S3 or any
// S3-compatible object store. Blob paths are object keys under an optional
// prefix.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3 creates an S3-backed blob store. The client should be
// pre-configured (credentials, region, endpoint); any type satisfying S3API
// is accepted, typically an s3.Client. Prefix is prepended to all object
// keys; pass "" for no prefix.
func NewS3(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Save uploads the image bytes under a fresh key derived from itemID and
// returns that key.
func (s *S3Store) Save(ctx context.Context, itemID string, data []byte) (string, error) {
	key := path.Join(s.prefix, blobName(itemID))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image to s3: %w", err)
	}
	return key, nil
}

// Delete removes the object at the given key.
// S3 DeleteObject already returns success for missing keys (idempotent).
func (s *S3Store) Delete(ctx context.Context, blobPath string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobPath),
	})
	return err
}

// Exists checks whether the object exists via HeadObject.
func (s *S3Store) Exists(ctx context.Context, blobPath string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(blobPath),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteAll removes every object under the store's prefix and returns the
// number removed. Keys are listed first, then deleted in batches of up to
// 1000 keys with bounded parallelism.
func (s *S3Store) DeleteAll(ctx context.Context) (int, error) {
	keys, err := s.listAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteWorkers)
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]
		g.Go(func() error {
			objects := make([]types.ObjectIdentifier, 0, len(batch))
			for _, k := range batch {
				objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
			}
			_, err := s.client.DeleteObjects(gctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{
					Objects: objects,
					Quiet:   aws.Bool(true),
				},
			})
			if err != nil {
				return fmt.Errorf("failed to delete batch of %d objects: %w", len(batch), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// listAll collects every object key under the store's prefix.
func (s *S3Store) listAll(ctx context.Context) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			return keys, nil
		}
		token = out.NextContinuationToken
	}
}

// isS3NotFound reports whether err indicates the S3 object does not exist.
func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

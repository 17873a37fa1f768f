package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3API abstracts the S3 object API.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source serves profiles from JSON documents in a bucket. A
// profile app/env/cfg maps to {prefix}/{app}/{env}/{cfg}.json.
// This is also where hosted configuration content lands when it
// is offloaded past the inline template ceiling.
type S3Source struct {
	client S3API
	bucket string
	prefix string
	log    *zap.Logger
}

var _ Source = (*S3Source)(nil)

func NewS3Source(ctx context.Context, region, bucket, prefix string, log *zap.Logger) (*S3Source, error) {
	if bucket == "" {
		return nil, errors.New("s3 source requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return NewS3SourceWithClient(s3.NewFromConfig(cfg), bucket, prefix, log), nil
}

func NewS3SourceWithClient(client S3API, bucket, prefix string, log *zap.Logger) *S3Source {
	return &S3Source{
		client: client,
		bucket: bucket,
		prefix: prefix,
		log:    log.Named("s3_source"),
	}
}

func (s *S3Source) Open(_ context.Context, ref ProfileRef) (Session, error) {
	return &s3Session{
		client: s.client,
		ref:    ref,
		bucket: s.bucket,
		key:    path.Join(s.prefix, ref.Application, ref.Environment, ref.Configuration+".json"),
	}, nil
}

type s3Session struct {
	client S3API
	ref    ProfileRef
	bucket string
	key    string
	etag   string
}

func (s *s3Session) Fetch(ctx context.Context) (Document, bool, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	}
	if s.etag != "" {
		input.IfNoneMatch = aws.String(s.etag)
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return Document{}, false, fmt.Errorf("%w: %s", ErrNotFound, s.ref)
		}
		if isNotModified(err) {
			return Document{}, false, nil
		}
		return Document{}, false, fmt.Errorf("fetching s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Document{}, false, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, s.key, err)
	}

	s.etag = aws.ToString(out.ETag)

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = "application/json"
	}

	return Document{
		Data:        data,
		Version:     s.etag,
		ContentType: contentType,
	}, true, nil
}

func (s *s3Session) Close() error {
	return nil
}

// isNotModified reports whether err is the 304 returned for a
// conditional get with a matching etag. The SDK surfaces it as a
// generic response error, so match on the status code.
func isNotModified(err error) bool {
	var respErr interface{ HTTPStatusCode() int }
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == 304
}

package source_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/appconfd/appconfd/internal/source"
)

// --- Mock object client ---

type MockS3API struct {
	mock.Mock
}

func (m *MockS3API) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.GetObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

// notModifiedError mimics the SDK response error for a conditional
// get whose etag still matches.
type notModifiedError struct{}

func (notModifiedError) Error() string       { return "api error NotModified" }
func (notModifiedError) HTTPStatusCode() int { return 304 }

func TestS3Source_Fetch(t *testing.T) {
	client := new(MockS3API)
	client.On("GetObject", mock.Anything, &s3.GetObjectInput{
		Bucket: aws.String("config-bucket"),
		Key:    aws.String("configs/myApp/production/myConfig.json"),
	}).Return(&s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader([]byte(`{"prop1":true}`))),
		ETag:        aws.String(`"abc123"`),
		ContentType: aws.String("application/json"),
	}, nil)

	src := source.NewS3SourceWithClient(client, "config-bucket", "configs", zap.NewNop())

	session, err := src.Open(context.Background(), source.ProfileRef{
		Application:   "myApp",
		Environment:   "production",
		Configuration: "myConfig",
	})
	require.NoError(t, err)
	defer session.Close()

	doc, ok, err := session.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"prop1":true}`, string(doc.Data))
	assert.Equal(t, `"abc123"`, doc.Version)
	assert.Equal(t, "application/json", doc.ContentType)

	client.AssertExpectations(t)
}

func TestS3Source_FetchConditionalGet(t *testing.T) {
	client := new(MockS3API)
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return in.IfNoneMatch == nil
	})).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader([]byte(`{"prop1":true}`))),
		ETag: aws.String(`"abc123"`),
	}, nil).Once()
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.IfNoneMatch) == `"abc123"`
	})).Return(nil, fmt.Errorf("operation error S3: GetObject, %w", notModifiedError{})).Once()

	src := source.NewS3SourceWithClient(client, "config-bucket", "", zap.NewNop())

	session, err := src.Open(context.Background(), source.ProfileRef{
		Application:   "myApp",
		Environment:   "production",
		Configuration: "myConfig",
	})
	require.NoError(t, err)

	_, ok, err := session.Fetch(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// the matching etag turns into "no change", not an error
	_, ok, err = session.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	client.AssertExpectations(t)
}

func TestS3Source_FetchNotFound(t *testing.T) {
	client := new(MockS3API)
	client.On("GetObject", mock.Anything, mock.Anything).
		Return(nil, &s3types.NoSuchKey{Message: aws.String("no such key")})

	src := source.NewS3SourceWithClient(client, "config-bucket", "", zap.NewNop())

	session, err := src.Open(context.Background(), source.ProfileRef{
		Application:   "missing",
		Environment:   "production",
		Configuration: "myConfig",
	})
	require.NoError(t, err)

	_, _, err = session.Fetch(context.Background())
	assert.True(t, errors.Is(err, source.ErrNotFound))
}

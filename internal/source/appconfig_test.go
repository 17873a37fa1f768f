package source_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/appconfigdata"
	"github.com/aws/aws-sdk-go-v2/service/appconfigdata/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/appconfd/appconfd/internal/source"
)

// --- Mock data plane client ---

type MockAppConfigAPI struct {
	mock.Mock

	startOptFns []func(*appconfigdata.Options)
	getOptFns   []func(*appconfigdata.Options)
}

func (m *MockAppConfigAPI) StartConfigurationSession(ctx context.Context, params *appconfigdata.StartConfigurationSessionInput, optFns ...func(*appconfigdata.Options)) (*appconfigdata.StartConfigurationSessionOutput, error) {
	m.startOptFns = optFns

	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*appconfigdata.StartConfigurationSessionOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAppConfigAPI) GetLatestConfiguration(ctx context.Context, params *appconfigdata.GetLatestConfigurationInput, optFns ...func(*appconfigdata.Options)) (*appconfigdata.GetLatestConfigurationOutput, error) {
	m.getOptFns = optFns

	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*appconfigdata.GetLatestConfigurationOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- Tests ---

func TestAppConfigSource_OpenStartsSession(t *testing.T) {
	client := new(MockAppConfigAPI)
	client.On("StartConfigurationSession", mock.Anything, &appconfigdata.StartConfigurationSessionInput{
		ApplicationIdentifier:                aws.String("myApp"),
		EnvironmentIdentifier:                aws.String("production"),
		ConfigurationProfileIdentifier:       aws.String("myConfig"),
		RequiredMinimumPollIntervalInSeconds: aws.Int32(45),
	}).Return(&appconfigdata.StartConfigurationSessionOutput{
		InitialConfigurationToken: aws.String("token-0"),
	}, nil)

	src := source.NewAppConfigSourceWithClient(client, 45*time.Second, zap.NewNop())

	session, err := src.Open(context.Background(), source.ProfileRef{
		Application:   "myApp",
		Environment:   "production",
		Configuration: "myConfig",
	})
	require.NoError(t, err)
	defer session.Close()

	client.AssertExpectations(t)
}

func TestAppConfigSource_OpenClampsPollInterval(t *testing.T) {
	client := new(MockAppConfigAPI)
	client.On("StartConfigurationSession", mock.Anything, mock.MatchedBy(func(in *appconfigdata.StartConfigurationSessionInput) bool {
		return aws.ToInt32(in.RequiredMinimumPollIntervalInSeconds) == 15
	})).Return(&appconfigdata.StartConfigurationSessionOutput{
		InitialConfigurationToken: aws.String("token-0"),
	}, nil)

	src := source.NewAppConfigSourceWithClient(client, time.Second, zap.NewNop())

	_, err := src.Open(context.Background(), source.ProfileRef{
		Application:   "myApp",
		Environment:   "production",
		Configuration: "myConfig",
	})
	require.NoError(t, err)

	client.AssertExpectations(t)
}

func TestAppConfigSource_OpenNotFound(t *testing.T) {
	client := new(MockAppConfigAPI)
	client.On("StartConfigurationSession", mock.Anything, mock.Anything).
		Return(nil, &types.ResourceNotFoundException{Message: aws.String("no such application")})

	src := source.NewAppConfigSourceWithClient(client, 45*time.Second, zap.NewNop())

	_, err := src.Open(context.Background(), source.ProfileRef{
		Application:   "missing",
		Environment:   "production",
		Configuration: "myConfig",
	})

	assert.True(t, errors.Is(err, source.ErrNotFound))
}

func TestAppConfigSession_FetchChainsTokens(t *testing.T) {
	client := new(MockAppConfigAPI)
	client.On("StartConfigurationSession", mock.Anything, mock.Anything).Return(&appconfigdata.StartConfigurationSessionOutput{
		InitialConfigurationToken: aws.String("token-0"),
	}, nil)
	client.On("GetLatestConfiguration", mock.Anything, &appconfigdata.GetLatestConfigurationInput{
		ConfigurationToken: aws.String("token-0"),
	}).Return(&appconfigdata.GetLatestConfigurationOutput{
		Configuration:              []byte(`{"prop1":true}`),
		NextPollConfigurationToken: aws.String("token-1"),
		ContentType:                aws.String("application/json"),
	}, nil).Once()
	client.On("GetLatestConfiguration", mock.Anything, &appconfigdata.GetLatestConfigurationInput{
		ConfigurationToken: aws.String("token-1"),
	}).Return(&appconfigdata.GetLatestConfigurationOutput{
		NextPollConfigurationToken: aws.String("token-2"),
	}, nil).Once()

	src := source.NewAppConfigSourceWithClient(client, 45*time.Second, zap.NewNop())

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
	assert.Equal(t, "1", doc.Version)
	assert.Equal(t, "application/json", doc.ContentType)

	// an empty body means the deployment did not change
	_, ok, err = session.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	client.AssertExpectations(t)
}

func TestAppConfigSource_TagsCallsWithClientID(t *testing.T) {
	client := new(MockAppConfigAPI)
	client.On("StartConfigurationSession", mock.Anything, mock.Anything).Return(&appconfigdata.StartConfigurationSessionOutput{
		InitialConfigurationToken: aws.String("token-0"),
	}, nil)
	client.On("GetLatestConfiguration", mock.Anything, mock.Anything).Return(&appconfigdata.GetLatestConfigurationOutput{
		Configuration:              []byte(`{}`),
		NextPollConfigurationToken: aws.String("token-1"),
	}, nil)

	src := source.NewAppConfigSourceWithClient(client, 45*time.Second, zap.NewNop())

	ctx := source.ContextWithClientID(context.Background(), "client-1")

	session, err := src.Open(ctx, source.ProfileRef{
		Application:   "myApp",
		Environment:   "production",
		Configuration: "myConfig",
	})
	require.NoError(t, err)

	_, _, err = session.Fetch(ctx)
	require.NoError(t, err)

	// both calls carry the user agent option derived from the
	// client id
	require.Len(t, client.startOptFns, 1)
	require.Len(t, client.getOptFns, 1)

	var opts appconfigdata.Options
	client.startOptFns[0](&opts)
	assert.Len(t, opts.APIOptions, 1)

	// without a client id in the context, no option is attached
	_, _, err = session.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, client.getOptFns)
}

func TestAppConfigSession_FetchPrefersVersionLabel(t *testing.T) {
	client := new(MockAppConfigAPI)
	client.On("StartConfigurationSession", mock.Anything, mock.Anything).Return(&appconfigdata.StartConfigurationSessionOutput{
		InitialConfigurationToken: aws.String("token-0"),
	}, nil)
	client.On("GetLatestConfiguration", mock.Anything, mock.Anything).Return(&appconfigdata.GetLatestConfigurationOutput{
		Configuration:              []byte(`{}`),
		NextPollConfigurationToken: aws.String("token-1"),
		VersionLabel:               aws.String("v2.1"),
	}, nil)

	src := source.NewAppConfigSourceWithClient(client, 45*time.Second, zap.NewNop())

	session, err := src.Open(context.Background(), source.ProfileRef{
		Application:   "myApp",
		Environment:   "production",
		Configuration: "myConfig",
	})
	require.NoError(t, err)

	doc, ok, err := session.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2.1", doc.Version)
}

package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/appconfigdata"
	"github.com/aws/aws-sdk-go-v2/service/appconfigdata/types"
	"go.uber.org/zap"
)

// AppConfigAPI abstracts the AppConfig data plane API.
type AppConfigAPI interface {
	StartConfigurationSession(ctx context.Context, params *appconfigdata.StartConfigurationSessionInput, optFns ...func(*appconfigdata.Options)) (*appconfigdata.StartConfigurationSessionOutput, error)
	GetLatestConfiguration(ctx context.Context, params *appconfigdata.GetLatestConfigurationInput, optFns ...func(*appconfigdata.Options)) (*appconfigdata.GetLatestConfigurationOutput, error)
}

// AppConfigSource serves profiles from the AWS AppConfig data
// plane, one configuration session per opened profile.
type AppConfigSource struct {
	client       AppConfigAPI
	pollInterval int32
	log          *zap.Logger
}

var _ Source = (*AppConfigSource)(nil)

func NewAppConfigSource(ctx context.Context, region string, pollInterval time.Duration, log *zap.Logger) (*AppConfigSource, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return NewAppConfigSourceWithClient(appconfigdata.NewFromConfig(cfg), pollInterval, log), nil
}

func NewAppConfigSourceWithClient(client AppConfigAPI, pollInterval time.Duration, log *zap.Logger) *AppConfigSource {
	interval := int32(pollInterval / time.Second)
	if interval < 15 {
		// the data plane rejects anything below 15s
		interval = 15
	}

	return &AppConfigSource{
		client:       client,
		pollInterval: interval,
		log:          log.Named("appconfig_source"),
	}
}

// apiOptions attributes data plane calls to the calling agent by
// tagging the user agent with the client id carried in ctx.
func apiOptions(ctx context.Context) []func(*appconfigdata.Options) {
	id, ok := ClientIDFromContext(ctx)
	if !ok {
		return nil
	}

	return []func(*appconfigdata.Options){
		func(o *appconfigdata.Options) {
			o.APIOptions = append(o.APIOptions, awsmiddleware.AddUserAgentKeyValue("appconfd-client", id))
		},
	}
}

func (s *AppConfigSource) Open(ctx context.Context, ref ProfileRef) (Session, error) {
	out, err := s.client.StartConfigurationSession(ctx, &appconfigdata.StartConfigurationSessionInput{
		ApplicationIdentifier:                aws.String(ref.Application),
		EnvironmentIdentifier:                aws.String(ref.Environment),
		ConfigurationProfileIdentifier:       aws.String(ref.Configuration),
		RequiredMinimumPollIntervalInSeconds: aws.Int32(s.pollInterval),
	}, apiOptions(ctx)...)
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("starting configuration session for %s: %w", ref, err)
	}

	s.log.Debug("configuration session started", zap.String("profile", ref.String()))

	return &appConfigSession{
		client: s.client,
		ref:    ref,
		token:  aws.ToString(out.InitialConfigurationToken),
	}, nil
}

// appConfigSession chains poll tokens across fetches. Tokens are
// single-use and sequential, so a session must not be shared.
type appConfigSession struct {
	client   AppConfigAPI
	ref      ProfileRef
	token    string
	revision int
}

func (s *appConfigSession) Fetch(ctx context.Context) (Document, bool, error) {
	out, err := s.client.GetLatestConfiguration(ctx, &appconfigdata.GetLatestConfigurationInput{
		ConfigurationToken: aws.String(s.token),
	}, apiOptions(ctx)...)
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return Document{}, false, fmt.Errorf("%w: %s", ErrNotFound, s.ref)
		}
		return Document{}, false, fmt.Errorf("fetching configuration for %s: %w", s.ref, err)
	}

	s.token = aws.ToString(out.NextPollConfigurationToken)

	// an empty body means the deployed configuration did not
	// change since the previous poll
	if len(out.Configuration) == 0 {
		return Document{}, false, nil
	}

	s.revision++

	version := aws.ToString(out.VersionLabel)
	if version == "" {
		version = strconv.Itoa(s.revision)
	}

	return Document{
		Data:        out.Configuration,
		Version:     version,
		ContentType: aws.ToString(out.ContentType),
	}, true, nil
}

func (s *appConfigSession) Close() error {
	// sessions expire server-side; nothing to tear down
	return nil
}

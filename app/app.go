package app

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/appconfd/appconfd/config"
	"github.com/appconfd/appconfd/handler"
	"github.com/appconfd/appconfd/internal/agent"
	"github.com/appconfd/appconfd/internal/shell"
	"github.com/appconfd/appconfd/internal/source"
	"github.com/appconfd/appconfd/util/conf"
	"github.com/appconfd/appconfd/util/logging"
)

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	config, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(config),
		// provide agent config
		fx.Supply(config.Agent),
		// provide upstream source
		fx.Provide(NewSource),
		// provide caching agent
		fx.Provide(agent.NewLifecycleAgent),
		// expose the agent to the data plane handlers
		fx.Provide(func(a *agent.Agent) handler.Getter { return a }),
	)

	return shell.New(log, sharedModule), nil
}

// NewSource builds the upstream source selected by the agent
// configuration.
func NewSource(ctx context.Context, cfg agent.Config, log *zap.Logger) (source.Source, error) {
	switch cfg.Source {
	case agent.SourceFile:
		return source.NewFileSource(cfg.FileDir, log), nil
	case agent.SourceS3:
		return source.NewS3Source(ctx, cfg.Region, cfg.S3Bucket, cfg.S3Prefix, log)
	case agent.SourceAppConfig, "":
		return source.NewAppConfigSource(ctx, cfg.Region, cfg.PollInterval, log)
	default:
		return nil, fmt.Errorf("invalid source: %s", cfg.Source)
	}
}

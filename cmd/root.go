package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/appconfd/appconfd/config"
	"github.com/appconfd/appconfd/internal/shell"
	"github.com/appconfd/appconfd/util/conf"
	"github.com/appconfd/appconfd/util/logging"
)

var (
	appName  = "appconfd"
	appUsage = `A local configuration delivery agent for AWS AppConfig.
Polls deployed configuration profiles, caches them and serves
them over a localhost endpoint, so applications retrieve their
configuration with a plain http GET.`
	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Args:            true,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				EnvVars: []string{"LOG_FORMAT"},
			},
			// agent flags
			&cli.StringFlag{
				Name:     "source",
				Usage:    "the upstream source to pull configuration from. Options: appconfig, file, s3.",
				Aliases:  []string{"s"},
				Value:    "appconfig",
				Category: "agent",
				EnvVars:  []string{"AGENT_SOURCE"},
			},
			&cli.StringFlag{
				Name:     "region",
				Usage:    "the AWS region for the appconfig and s3 sources.",
				Category: "agent",
				EnvVars:  []string{"AGENT_REGION", "AWS_REGION"},
			},
			&cli.StringSliceFlag{
				Name:     "profile",
				Usage:    "an application/environment/configuration triple to poll in the background. Can be repeated.",
				Aliases:  []string{"p"},
				Category: "agent",
				EnvVars:  []string{"AGENT_PROFILES"},
			},
			&cli.DurationFlag{
				Name:     "poll-interval",
				Usage:    "the base interval between polls of a subscribed profile.",
				Value:    45 * time.Second,
				Category: "agent",
				EnvVars:  []string{"AGENT_POLL_INTERVAL"},
			},
			&cli.DurationFlag{
				Name:     "cache-ttl",
				Usage:    "how long a cached document is considered fresh.",
				Value:    45 * time.Second,
				Category: "agent",
				EnvVars:  []string{"AGENT_CACHE_TTL"},
			},
			&cli.IntFlag{
				Name:     "max-sessions",
				Usage:    "the maximum number of concurrent on-demand upstream sessions.",
				Value:    4,
				Category: "agent",
				EnvVars:  []string{"AGENT_MAX_SESSIONS"},
			},
			&cli.StringFlag{
				Name:     "file-dir",
				Usage:    "the document directory for the file source.",
				Category: "agent",
				EnvVars:  []string{"AGENT_FILE_DIR"},
			},
			&cli.StringFlag{
				Name:     "schema-dir",
				Usage:    "a directory of optional JSON schemas used to validate incoming payloads.",
				Category: "agent",
				EnvVars:  []string{"AGENT_SCHEMA_DIR"},
			},
			&cli.StringFlag{
				Name:     "s3-bucket",
				Usage:    "the bucket for the s3 source.",
				Category: "agent",
				EnvVars:  []string{"AGENT_S3_BUCKET"},
			},
			&cli.StringFlag{
				Name:     "s3-prefix",
				Usage:    "the key prefix for the s3 source.",
				Category: "agent",
				EnvVars:  []string{"AGENT_S3_PREFIX"},
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			// parse config using env and cli flags
			cfg, err := conf.Parse[config.Config](conf.ParseOptions{
				Defaults: config.DefaultConfig,
				Cli:      ctx,
				CliMap:   agentFlagMap,
				Log:      log,
			})
			if err != nil {
				return err
			}

			// inject the config into the cli context
			ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

			return nil
		},
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return err
			}

			log.Sync()

			return nil
		},
	}

	// agentFlagMap maps agent cli flags to their config keys.
	agentFlagMap = map[string]string{
		"source":        "agent.source",
		"region":        "agent.region",
		"profile":       "agent.profiles",
		"poll-interval": "agent.poll_interval",
		"cache-ttl":     "agent.cache_ttl",
		"max-sessions":  "agent.max_sessions",
		"file-dir":      "agent.file_dir",
		"schema-dir":    "agent.schema_dir",
		"s3-bucket":     "agent.s3_bucket",
		"s3-prefix":     "agent.s3_prefix",
	}
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

func Execute(params ExecuteParams) {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	run(context.Background(), os.Args)
}

func run(ctx context.Context, args []string) {
	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return
	}

	// if app exited with ExitError, exit with given exit code
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode)
	}

	fmt.Printf("exit error: %s\n", err.Error())

	// otherwise, exit with exit code 1
	os.Exit(1)
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	level := getLogLevelFromCLI(ctx)
	format := getLogFormatFromCLI(ctx)

	var config zap.Config
	if format == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": appName,
	}

	config.Level = level

	return config.Build()
}

func getLogFormatFromCLI(ctx *cli.Context) string {
	format := ctx.String("log-format")
	if format != "" {
		return format
	}

	return "production"
}

func getLogLevelFromCLI(ctx *cli.Context) zap.AtomicLevel {
	lvl := ctx.String("log-level")

	if atom, err := zap.ParseAtomicLevel(lvl); err == nil {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}

package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/appconfd/appconfd/app"
	"github.com/appconfd/appconfd/app/standalone"
	"github.com/appconfd/appconfd/internal/server"
)

var (
	serveCmdDescription = `The serve command starts the agent with its http data plane
	and blocks indefinitely. Subscribed profiles are polled in
	the background; every other profile is fetched on demand on
	first request.

	Applications retrieve their configuration with a plain GET
	against the agent endpoint:

	http://localhost:2772/applications/{app}/environments/{env}/configurations/{config}`
	serveCmd = &cli.Command{
		Name:        "serve",
		Usage:       "Start the agent and listen for configuration requests.",
		Description: serveCmdDescription,
		Action:      serveAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "host",
				Aliases:  []string{"H"},
				Usage:    "The host to listen on.",
				Value:    "localhost",
				Category: "http",
				EnvVars:  []string{"HTTP_HOST"},
			},
			&cli.IntFlag{
				Name:     "port",
				Aliases:  []string{"P"},
				Usage:    "The port to listen on.",
				Value:    2772,
				Category: "http",
				EnvVars:  []string{"HTTP_PORT"},
			},
			&cli.BoolFlag{
				Name:     "h2c",
				Usage:    "Enable HTTP/2 cleartext upgrade.",
				Value:    false,
				Category: "http",
				EnvVars:  []string{"HTTP_H2C"},
			},
		},
	}
)

func serveAction(ctx *cli.Context) error {
	app, err := app.New(ctx)
	if err != nil {
		return err
	}

	httpConfig := server.HttpConfig{
		Host: ctx.String("host"),
		Port: ctx.Int("port"),
		H2c:  ctx.Bool("h2c"),
	}

	return app.Run(ctx.Context, standalone.Module(standalone.Config{
		HttpConfig: httpConfig,
	}))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, serveCmd)
}

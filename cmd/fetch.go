package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/appconfd/appconfd/internal/fetch"
	"github.com/appconfd/appconfd/internal/source"
	"github.com/appconfd/appconfd/util/logging"
)

var (
	fetchCmdDescription = `The fetch command retrieves a single configuration document
from a running agent and prints it to stdout. It is the cli
equivalent of the GET request applications issue themselves:

http://localhost:2772/applications/{app}/environments/{env}/configurations/{config}

The profile is given as a single application/environment/
configuration argument.`
	fetchCmd = &cli.Command{
		Name:        "fetch",
		Usage:       "Fetch a configuration document from a running agent.",
		Description: fetchCmdDescription,
		ArgsUsage:   "application/environment/configuration",
		Action:      fetchAction,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "agent-host",
				Usage:    "The host of the agent to fetch from.",
				Value:    "localhost",
				Category: "fetch",
				EnvVars:  []string{"FETCH_AGENT_HOST"},
			},
			&cli.IntFlag{
				Name:     "agent-port",
				Usage:    "The port of the agent to fetch from.",
				Value:    2772,
				Category: "fetch",
				EnvVars:  []string{"FETCH_AGENT_PORT"},
			},
			&cli.DurationFlag{
				Name:     "timeout",
				Usage:    "The per-attempt request timeout.",
				Value:    5 * time.Second,
				Category: "fetch",
				EnvVars:  []string{"FETCH_TIMEOUT"},
			},
			&cli.IntFlag{
				Name:     "retries",
				Usage:    "The number of retries for transport failures.",
				Value:    2,
				Category: "fetch",
				EnvVars:  []string{"FETCH_RETRIES"},
			},
		},
	}
)

func fetchAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return fmt.Errorf("expected a single application/environment/configuration argument")
	}

	ref, err := source.ParseProfileRef(ctx.Args().First())
	if err != nil {
		return err
	}

	client := fetch.New(fetch.Config{
		Host:    ctx.String("agent-host"),
		Port:    ctx.Int("agent-port"),
		Timeout: ctx.Duration("timeout"),
		Retries: ctx.Int("retries"),
	}, log)

	doc, err := client.Fetch(ctx.Context, ref)
	if err != nil {
		switch {
		case fetch.IsTransportError(err):
			return fmt.Errorf("agent unreachable: %w", err)
		case fetch.IsStatusError(err):
			return fmt.Errorf("agent rejected the request: %w", err)
		case fetch.IsDecodeError(err):
			return fmt.Errorf("agent returned a malformed document: %w", err)
		default:
			return err
		}
	}

	out, err := json.MarshalIndent(doc.Value, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(ctx.App.Writer, string(out))

	return nil
}

func init() {
	rootApp.Commands = append(rootApp.Commands, fetchCmd)
}

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/appconfd/appconfd/internal/template"
	"github.com/appconfd/appconfd/util/logging"
)

var (
	deployCmdDescription = `The deploy command prepares a CloudFormation template holding
AppConfig resources for deployment. It validates references
and dependencies, and rewrites hosted configuration versions
whose inline content exceeds the 4096 byte ceiling: oversized
content is uploaded to S3 and replaced with an AWS::Include
transform pointing at the uploaded object.

With --check the template is only validated, nothing is
uploaded or rewritten.`
	deployCmd = &cli.Command{
		Name:        "deploy",
		Usage:       "Validate and rewrite an AppConfig CloudFormation template.",
		Description: deployCmdDescription,
		Action:      deployAction,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:     "template",
				Aliases:  []string{"t"},
				Usage:    "The template file to process.",
				Required: true,
				Category: "deploy",
				EnvVars:  []string{"DEPLOY_TEMPLATE"},
			},
			&cli.PathFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Write the rewritten template to this file instead of stdout.",
				Category: "deploy",
				EnvVars:  []string{"DEPLOY_OUTPUT"},
			},
			&cli.StringFlag{
				Name:     "s3-bucket",
				Usage:    "The bucket to upload oversized content to.",
				Category: "deploy",
				EnvVars:  []string{"DEPLOY_S3_BUCKET"},
			},
			&cli.StringFlag{
				Name:     "s3-prefix",
				Usage:    "The key prefix for uploaded content.",
				Category: "deploy",
				EnvVars:  []string{"DEPLOY_S3_PREFIX"},
			},
			&cli.StringFlag{
				Name:     "region",
				Usage:    "The AWS region for the upload.",
				Category: "deploy",
				EnvVars:  []string{"DEPLOY_REGION", "AWS_REGION"},
			},
			&cli.BoolFlag{
				Name:     "check",
				Usage:    "Only validate the template, do not upload or rewrite.",
				Category: "deploy",
				EnvVars:  []string{"DEPLOY_CHECK"},
			},
		},
	}
)

// objectUploader is the slice of the S3 API the deploy command
// needs to offload oversized content.
type objectUploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func deployAction(ctx *cli.Context) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(ctx.Path("template"))
	if err != nil {
		return fmt.Errorf("reading template: %w", err)
	}

	tpl, err := template.Parse(data)
	if err != nil {
		return err
	}

	oversized := tpl.OversizedContent()

	if ctx.Bool("check") {
		return reportProblems(ctx, tpl.Validate())
	}

	if len(oversized) > 0 {
		uploader, err := newObjectUploader(ctx)
		if err != nil {
			return err
		}

		if err := offloadOversized(ctx, tpl, oversized, uploader, log); err != nil {
			return err
		}
	}

	if err := reportProblems(ctx, tpl.Validate()); err != nil {
		return err
	}

	out, err := tpl.Encode()
	if err != nil {
		return err
	}

	if output := ctx.Path("output"); output != "" {
		return os.WriteFile(output, out, 0o644)
	}

	fmt.Fprint(ctx.App.Writer, string(out))

	return nil
}

func newObjectUploader(ctx *cli.Context) (objectUploader, error) {
	if ctx.String("s3-bucket") == "" {
		return nil, fmt.Errorf("template has oversized inline content, an --s3-bucket is required to offload it")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region := ctx.String("region"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx.Context, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return s3.NewFromConfig(cfg), nil
}

// offloadOversized uploads the inline content of each oversized
// hosted configuration version and rewrites the resource to pull
// it in via AWS::Include.
func offloadOversized(ctx *cli.Context, tpl *template.Template, names []string, uploader objectUploader, log *zap.Logger) error {
	bucket := ctx.String("s3-bucket")
	prefix := ctx.String("s3-prefix")

	for _, name := range names {
		content, ok := tpl.InlineContent(name)
		if !ok {
			continue
		}

		location := template.S3Location{
			Bucket: bucket,
			Key:    path.Join(prefix, name+".json"),
		}

		_, err := uploader.PutObject(ctx.Context, &s3.PutObjectInput{
			Bucket: aws.String(location.Bucket),
			Key:    aws.String(location.Key),
			Body:   bytes.NewReader([]byte(content)),
		})
		if err != nil {
			return fmt.Errorf("uploading content for %s: %w", name, err)
		}

		if err := tpl.OffloadContent(name, location); err != nil {
			return err
		}

		log.Info("offloaded oversized content",
			zap.String("resource", name),
			zap.String("location", location.URI()),
			zap.Int("bytes", len(content)),
		)
	}

	return nil
}

func reportProblems(ctx *cli.Context, problems []template.Problem) error {
	if len(problems) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, problem := range problems {
		sb.WriteString(problem.String())
		sb.WriteString("\n")
	}

	fmt.Fprint(ctx.App.ErrWriter, sb.String())

	return fmt.Errorf("template has %d problem(s)", len(problems))
}

func init() {
	rootApp.Commands = append(rootApp.Commands, deployCmd)
}

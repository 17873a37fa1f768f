package agent

import (
	"time"

	"github.com/appconfd/appconfd/util/conf"
)

// SourceType selects the upstream the agent pulls from.
type SourceType string

const (
	// SourceAppConfig pulls from the AWS AppConfig data plane.
	SourceAppConfig SourceType = "appconfig"

	// SourceFile pulls from local JSON documents.
	SourceFile SourceType = "file"

	// SourceS3 pulls from JSON documents in a bucket.
	SourceS3 SourceType = "s3"
)

func (s SourceType) String() string {
	return string(s)
}

type Config struct {
	// Source is the upstream source. Options: appconfig, file, s3.
	Source SourceType `conf:"source"`

	// Region is the AWS region for the appconfig and s3 sources.
	Region string `conf:"region"`

	// Profiles are application/environment/configuration triples
	// to poll in the background.
	Profiles []string `conf:"profiles"`

	// PollInterval is the base interval between polls of a
	// subscribed profile.
	PollInterval time.Duration `conf:"poll_interval"`

	// CacheTTL is how long a cached document is considered fresh.
	CacheTTL time.Duration `conf:"cache_ttl"`

	// MaxSessions bounds concurrent on-demand upstream sessions.
	MaxSessions int `conf:"max_sessions"`

	// FileDir is the document directory for the file source.
	FileDir string `conf:"file_dir"`

	// S3Bucket and S3Prefix locate documents for the s3 source.
	S3Bucket string `conf:"s3_bucket"`
	S3Prefix string `conf:"s3_prefix"`

	// SchemaDir holds optional JSON schema validators, one
	// {application}/{environment}/{configuration}.schema.json per
	// subscribed profile.
	SchemaDir string `conf:"schema_dir"`
}

var DefaultConfig = conf.DefaultConfig{
	"source":        "appconfig",
	"poll_interval": "45s",
	"cache_ttl":     "45s",
	"max_sessions":  4,
}

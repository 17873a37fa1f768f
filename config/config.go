package config

import (
	"github.com/appconfd/appconfd/internal/agent"
	"github.com/appconfd/appconfd/util/conf"
)

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Agent is the caching agent configuration
	Agent agent.Config `conf:"agent"`
}

var DefaultConfig = conf.MergeDefaults("agent", agent.DefaultConfig)

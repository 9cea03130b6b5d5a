// config is the package containing configuration for seedy, as read
// from flags, the environment and (optionally) a config file.
package config

import (
	"fmt"
	"time"

	fluxerr "github.com/fluxcd/seedy/pkg/errors"
	"github.com/fluxcd/seedy/pkg/queue"
)

const (
	SeedyConfigVersion = "v1"
	// Environment variables are named for flags, upper-cased, with
	// this prefix; e.g., SEEDY_FILTER_LABEL.
	EnvPrefix = "SEEDY"
)

type Config struct {
	// This is expected to be present in a config file (and will not
	// correspond to a flag). If it is not equal to SeedyConfigVersion
	// above, the file is considered an invalid configuration.
	ConfigVersion string `mapstructure:"seedyConfigVersion"`

	Queue string        `mapstructure:"queue"`
	Wait  time.Duration `mapstructure:"wait"`

	FilterLabel  string   `mapstructure:"filterLabel"`
	IncludeImage []string `mapstructure:"includeImage"`
	ExcludeImage []string `mapstructure:"excludeImage"`

	Quiet   bool `mapstructure:"quiet"`
	Verbose int  `mapstructure:"verbose"`

	ListenMetrics string        `mapstructure:"listenMetrics"`
	Backoff       time.Duration `mapstructure:"backoff"`
	MaxBackoff    time.Duration `mapstructure:"maxBackoff"`
}

// IsValid checks that a config file is meant for us.
func (c Config) IsValid() error {
	if c.ConfigVersion != SeedyConfigVersion {
		return fmt.Errorf("config file is expected to include `seedyConfigVersion: %s` to mark it as a seedy config", SeedyConfigVersion)
	}
	return nil
}

// Check makes sure the values given make sense together.
func (c Config) Check() error {
	if c.Queue == "" {
		return &fluxerr.Error{
			Type: fluxerr.Configuration,
			Err:  fmt.Errorf("no queue given"),
			Help: `The name of the SQS queue to receive ECR events from is required, e.g.,

    seedy --queue=ecr-events

It can also be given as the environment variable ` + EnvPrefix + `_QUEUE, or as
'queue' in a config file.
`,
		}
	}
	if c.Wait < 0 || c.Wait > queue.MaxWait {
		return fluxerr.New(fluxerr.Configuration, "wait must be between 0s and %s, got %s", queue.MaxWait, c.Wait)
	}
	if c.Backoff < 0 {
		return fluxerr.New(fluxerr.Configuration, "backoff must not be negative, got %s", c.Backoff)
	}
	if c.MaxBackoff < c.Backoff {
		return fluxerr.New(fluxerr.Configuration, "max backoff (%s) must be at least backoff (%s)", c.MaxBackoff, c.Backoff)
	}
	if c.Verbose < 0 {
		return fluxerr.New(fluxerr.Configuration, "verbosity must not be negative, got %d", c.Verbose)
	}
	return nil
}

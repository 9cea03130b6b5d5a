package main

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fluxcd/seedy/pkg/config"
	"github.com/fluxcd/seedy/pkg/daemon"
	fluxerr "github.com/fluxcd/seedy/pkg/errors"
	"github.com/fluxcd/seedy/pkg/queue"
)

// defineConfigFlags defines the flags that can also be set in a config
// file or the environment. These need special treatment, because some
// care must be taken to match them ("bind") with config file field
// names.
func defineConfigFlags(fs *pflag.FlagSet, v *viper.Viper, bail func(error)) {

	bind := func(fieldName, flagName string) error {
		configStruct := reflect.TypeOf(config.Config{})
		field, ok := configStruct.FieldByName(fieldName)
		if !ok {
			return fmt.Errorf("attempt to bind a flag to a field not present in config.Config, %q", fieldName)
		}
		// this parallels the logic in
		// github.com/mitchellh/mapstructure, except that we want to
		// bail if a field is mentioned that is marked ignore, like
		// this: `mapstructure:"-"`
		mappedName := field.Name
		mapstructureTagParts := strings.Split(field.Tag.Get("mapstructure"), ",")
		if namePart := mapstructureTagParts[0]; namePart != "" {
			if namePart == "-" {
				return fmt.Errorf(`attempt to bind a flag to a config field tagged as ignored, %q`, field.Name)
			}
			mappedName = namePart
		}
		if err := v.BindPFlag(mappedName, fs.Lookup(flagName)); err != nil {
			return err
		}
		return v.BindEnv(mappedName, envName(flagName))
	}

	bindOrBail := func(fieldName, flagName string) {
		if err := bind(fieldName, flagName); err != nil {
			bail(err)
		}
	}

	defineString := func(fieldName, flagName, def, desc string) {
		fs.String(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineStringP := func(fieldName, flagName, short, def, desc string) {
		fs.StringP(flagName, short, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineStringSlice := func(fieldName, flagName string, def []string, desc string) {
		fs.StringSlice(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineBool := func(fieldName, flagName string, def bool, desc string) {
		fs.Bool(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineCountP := func(fieldName, flagName, short, desc string) {
		fs.CountP(flagName, short, desc)
		bindOrBail(fieldName, flagName)
	}

	defineDuration := func(fieldName, flagName string, def time.Duration, desc string) {
		fs.Duration(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineStringP("Queue", "queue", "q", "", "name of the SQS queue to receive ECR events from (required)")
	defineDuration("Wait", "wait", queue.MaxWait, "how long each poll of the queue waits for messages; at most 20s")

	// which services get updated
	defineString("FilterLabel", "filter-label", "", "update only services with this label, given as key=value; the default is to consider all services")
	defineStringSlice("IncludeImage", "include-image", nil, "update only services whose image matches one of these glob expressions; the default is to include all images")
	defineStringSlice("ExcludeImage", "exclude-image", nil, "do not update services whose image matches any of these glob expressions")

	// logging
	defineBool("Quiet", "quiet", false, "silence all log output")
	defineCountP("Verbose", "verbose", "v", "log more; give more than once for more still (-v warnings, -vv info, -vvv debug)")

	defineString("ListenMetrics", "listen-metrics", "", "listen address for /metrics and /healthz endpoints; if empty, they are not served")
	defineDuration("Backoff", "backoff", daemon.DefaultBackoff, "least time between attempts to poll the queue or list services, after a failure; 0 leaves only a short pause")
	defineDuration("MaxBackoff", "max-backoff", daemon.DefaultMaxBackoff, "most time between attempts to poll the queue or list services, while failures persist")
}

// envName gives the environment variable that can be used in place of
// a flag.
func envName(flagName string) string {
	return config.EnvPrefix + "_" + strings.ToUpper(strings.Replace(flagName, "-", "_", -1))
}

// loadConfig reads the config file, if one is given, and merges it
// with the flags and environment. Flags take precedence over the
// environment, which takes precedence over the file.
func loadConfig(v *viper.Viper, configFile string) (config.Config, error) {
	var cfg config.Config
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fluxerr.Wrap(fluxerr.Configuration, err, "reading config file "+configFile)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fluxerr.Wrap(fluxerr.Configuration, err, "interpreting configuration")
	}
	if configFile != "" {
		if err := cfg.IsValid(); err != nil {
			return cfg, fluxerr.Wrap(fluxerr.Configuration, err, configFile)
		}
	}
	if err := cfg.Check(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

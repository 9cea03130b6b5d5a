package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fluxcd/seedy/pkg/cluster"
	"github.com/fluxcd/seedy/pkg/cluster/swarm"
	"github.com/fluxcd/seedy/pkg/daemon"
	fluxerr "github.com/fluxcd/seedy/pkg/errors"
	transport "github.com/fluxcd/seedy/pkg/http"
	"github.com/fluxcd/seedy/pkg/queue"
	"github.com/fluxcd/seedy/pkg/registry"
)

var version = "unversioned"

// How long we give the Docker engine and SQS to answer at startup.
const startupTimeout = 30 * time.Second

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  seedy updates Docker Swarm services when their images are pushed to ECR.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}

	// Until the config has been read, errors are all we log.
	logger := newLogger(os.Stderr, false, 0)

	v := viper.New()
	defineConfigFlags(fs, v, func(err error) {
		exitWith(logger, err)
	})
	configFile := fs.String("config", "", "path to a YAML config file; flags and environment variables override what is in it")
	versionFlag := fs.Bool("version", false, "get version number")

	fs.Parse(os.Args[1:])

	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg, err := loadConfig(v, *configFile)
	if err != nil {
		exitWith(logger, err)
	}

	// Logger domain.
	logger = newLogger(os.Stderr, cfg.Quiet, cfg.Verbose)
	level.Info(logger).Log("version", version)

	filter, err := cluster.ParseFilter(cfg.FilterLabel)
	if err != nil {
		exitWith(logger, err)
	}
	includer := cluster.NewIncluder(cfg.IncludeImage, cfg.ExcludeImage)

	ctx, cancel := context.WithCancel(context.Background())

	// Cluster component.
	var clus cluster.Cluster
	{
		logger := log.With(logger, "component", "cluster")
		client, err := swarm.NewClient()
		if err != nil {
			exitWith(logger, fluxerr.Wrap(fluxerr.Configuration, err, "creating Docker client from environment"))
		}
		sc := swarm.NewCluster(client, logger)
		pingCtx, pingCancel := context.WithTimeout(ctx, startupTimeout)
		err = sc.Ping(pingCtx)
		pingCancel()
		if err != nil {
			exitWith(logger, err)
		}
		level.Info(logger).Log("docker", client.DaemonHost(), "filter", filter, "images", includer)
		clus = sc
	}

	// Registry component.
	var reg registry.Registry
	{
		logger := log.With(logger, "component", "registry")
		ecr, err := registry.NewECR(logger)
		if err != nil {
			exitWith(logger, fluxerr.Wrap(fluxerr.Configuration, err, "creating AWS session"))
		}
		reg = registry.NewInstrumentedRegistry(ecr)
	}

	// Queue component.
	var q queue.Queue
	{
		logger := log.With(logger, "component", "queue")
		api, err := queue.NewSQSClient()
		if err != nil {
			exitWith(logger, fluxerr.Wrap(fluxerr.Configuration, err, "creating AWS session"))
		}
		urlCtx, urlCancel := context.WithTimeout(ctx, startupTimeout)
		sqsQueue, err := queue.NewSQS(urlCtx, api, cfg.Queue, cfg.Wait)
		urlCancel()
		if err != nil {
			exitWith(logger, err)
		}
		level.Info(logger).Log("url", sqsQueue.URL(), "wait", cfg.Wait)
		q = sqsQueue
	}

	// Mechanical stuff.
	errc := make(chan error)
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	// HTTP transport component, for metrics and health checks.
	if cfg.ListenMetrics != "" {
		go func() {
			logger := log.With(logger, "component", "http")
			level.Info(logger).Log("addr", cfg.ListenMetrics)
			h := transport.NewHandler(transport.NewRouter(), clus, logger)
			errc <- http.ListenAndServe(cfg.ListenMetrics, h)
		}()
	}

	// Daemon.
	d := &daemon.Daemon{
		Queue:    q,
		Cluster:  clus,
		Registry: reg,
		Filter:   filter,
		Includer: includer,
		Logger:   log.With(logger, "component", "daemon"),
		Backoff:  daemon.NewBackoff(cfg.Backoff, cfg.MaxBackoff, log.With(logger, "component", "backoff")),
	}
	shutdownWg := &sync.WaitGroup{}
	shutdownWg.Add(1)
	go d.Loop(ctx, shutdownWg)
	level.Warn(logger).Log("msg", "listening for ECR events", "queue", cfg.Queue)

	// Go!
	exitCode := 0
	select {
	case sig := <-sigc:
		level.Warn(logger).Log("exiting", sig)
	case err := <-errc:
		level.Error(logger).Log("exiting", err)
		exitCode = 1
	}
	cancel()
	shutdownWg.Wait()
	os.Exit(exitCode)
}

// exitWith logs the error and exits; if the error comes with help for
// the operator, that is printed too.
func exitWith(logger log.Logger, err error) {
	level.Error(logger).Log("err", err)
	var ferr *fluxerr.Error
	if errors.As(err, &ferr) && ferr.Help != "" {
		fmt.Fprintf(os.Stderr, "\n%s", ferr.Help)
	}
	os.Exit(1)
}

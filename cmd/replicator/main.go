package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/crosscloud/object-replicator/common"
	"github.com/crosscloud/object-replicator/httpserver"
	"github.com/crosscloud/object-replicator/interfaces"
	"github.com/crosscloud/object-replicator/metrics"
	"github.com/crosscloud/object-replicator/replicator"
	"github.com/crosscloud/object-replicator/storage"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:    "listen-addr",
		Value:   "127.0.0.1:8080",
		Usage:   "address to listen on for API",
		EnvVars: []string{"LISTEN_ADDR"},
	},
	&cli.StringFlag{
		Name:    "metrics-addr",
		Value:   "127.0.0.1:8090",
		Usage:   "address to listen on for Prometheus metrics (empty to disable)",
		EnvVars: []string{"METRICS_ADDR"},
	},
	&cli.StringFlag{
		Name:    "source-location",
		Value:   "s3://?region=us-east-1",
		Usage:   "adapter URI of the source object store",
		EnvVars: []string{"SOURCE_LOCATION"},
	},
	&cli.StringFlag{
		Name:    "dest-location",
		Value:   "file:///tmp/local-replica",
		Usage:   "adapter URI of the destination object store",
		EnvVars: []string{"DEST_LOCATION", "LOCAL_REPLICA_PATH"},
	},
	&cli.StringFlag{
		Name:    "default-dest-bucket",
		Value:   "replica-bucket",
		Usage:   "destination bucket used when a replicate request omits one",
		EnvVars: []string{"TARGET_BUCKET"},
	},
	&cli.IntFlag{
		Name:    "max-retries",
		Value:   3,
		Usage:   "retries after the first replication attempt",
		EnvVars: []string{"MAX_RETRIES"},
	},
	&cli.DurationFlag{
		Name:    "retry-delay",
		Value:   100 * time.Millisecond,
		Usage:   "fixed delay between replication attempts",
		EnvVars: []string{"RETRY_DELAY"},
	},
	&cli.BoolFlag{
		Name:    "dev",
		Value:   false,
		Usage:   "replace the source with a seeded in-memory bucket",
		EnvVars: []string{"DEV_MODE"},
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.StringFlag{
		Name:  "log-service",
		Value: common.PackageName,
		Usage: "add 'service' tag to logs",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	// Local overrides from .env, ignored when absent.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "replicator",
		Usage:   "Serve the cross-cloud object replication API",
		Version: common.Version,
		Flags:   flags,
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	listenAddr := cCtx.String("listen-addr")
	metricsAddr := cCtx.String("metrics-addr")
	sourceLocation := cCtx.String("source-location")
	destLocation := cCtx.String("dest-location")
	defaultDestBucket := cCtx.String("default-dest-bucket")
	maxRetries := cCtx.Int("max-retries")
	retryDelay := cCtx.Duration("retry-delay")
	devMode := cCtx.Bool("dev")
	logJSON := cCtx.Bool("log-json")
	logDebug := cCtx.Bool("log-debug")
	logUID := cCtx.Bool("log-uid")
	logService := cCtx.String("log-service")
	enablePprof := cCtx.Bool("pprof")
	drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}

	factory := storage.NewAdapterFactory(logger)

	// Source adapter: a seeded in-memory bucket in dev mode, otherwise
	// whatever the source location URI describes.
	var source interfaces.StorageAdapter
	if devMode {
		mem := storage.NewMemoryAdapter(logger)
		seeded := interfaces.ObjectRef{Bucket: "source-bucket", Key: "hello.txt"}
		mem.Seed(seeded, []byte("Hello from mock S3!"))
		logger.Info("Dev mode: using in-memory source", "seeded", seeded.String())
		source = mem
	} else {
		loc, err := interfaces.NewAdapterLocation(sourceLocation)
		if err != nil {
			logger.Error("Invalid source location", "err", err)
			return err
		}
		source, err = factory.AdapterFor(loc)
		if err != nil {
			logger.Error("Failed to create source adapter", "err", err)
			return err
		}
	}

	destLoc, err := interfaces.NewAdapterLocation(destLocation)
	if err != nil {
		logger.Error("Invalid destination location", "err", err)
		return err
	}
	destination, err := factory.AdapterFor(destLoc)
	if err != nil {
		logger.Error("Failed to create destination adapter", "err", err)
		return err
	}

	logger.Info("Storage adapters ready",
		"source", source.LocationURI(),
		"destination", destination.LocationURI())

	repl, err := replicator.New(source, destination, interfaces.RetryPolicy{
		MaxRetries: maxRetries,
		Delay:      retryDelay,
	}, logger)
	if err != nil {
		logger.Error("Invalid retry policy", "err", err)
		return fmt.Errorf("invalid retry policy: %w", err)
	}

	var metricsSrv *metrics.MetricsServer
	var replMetrics *metrics.ReplicationMetrics
	if metricsAddr != "" {
		metricsSrv, err = metrics.New(metrics.Namespace, metricsAddr)
		if err != nil {
			logger.Error("Failed to create metrics server", "err", err)
			return err
		}
		replMetrics = metrics.NewReplicationMetrics(metrics.Namespace, metricsSrv.Registry())
	}

	handler := httpserver.NewHandler(repl, destination, defaultDestBucket, replMetrics, logger)

	server, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		EnablePprof:              enablePprof,
		Log:                      logger,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}, handler, metricsSrv)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}

// ifcjobs-worker is the per-queue worker runtime: it blocks popping jobs
// off a single queue, resolves a handler by name, and publishes results.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nuulab/ifcjobs/pkg/broker"
	"github.com/nuulab/ifcjobs/pkg/handlers"
	"github.com/nuulab/ifcjobs/pkg/logging"
	"github.com/nuulab/ifcjobs/pkg/volume"
	"github.com/nuulab/ifcjobs/pkg/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var builtinPatchRecipes = []string{
	"ExtractElements",
	"Georeference",
	"ResetAbsoluteCoordinates",
	"SplitByBuildingStorey",
}

func main() {
	queueName := flag.String("queue", "", "Queue name to consume (required)")
	brokerURL := flag.String("broker", "localhost:6379", "Broker (Redis-compatible) address")
	metricsPort := flag.Int("metrics-port", 9090, "Port to serve Prometheus metrics on")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if v := os.Getenv("QUEUE_NAME"); v != "" {
		*queueName = v
	}
	if v := os.Getenv("BROKER_URL"); v != "" {
		*brokerURL = v
	}
	if *queueName == "" {
		fmt.Fprintln(os.Stderr, "ifcjobs-worker: -queue (or QUEUE_NAME) is required")
		os.Exit(1)
	}

	level := logging.InfoLevel
	if *verbose {
		level = logging.DebugLevel
	}
	logging.Init(logging.Config{Level: level})
	log := logging.WithQueue(*queueName)

	printBanner(*queueName)

	jobTTL := envDuration("JOB_RESULT_TTL_SECONDS", 24*time.Hour)

	b, err := broker.NewRedisBroker(broker.Config{Address: *brokerURL, ResultTTL: jobTTL})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer b.Close()
	log.Info().Str("broker", *brokerURL).Msg("connected to broker")

	roots := volume.DefaultRoots()
	if v := os.Getenv("UPLOADS_ROOT"); v != "" {
		roots.Uploads = v
	}
	if v := os.Getenv("OUTPUT_ROOT"); v != "" {
		roots.Output = v
	}
	if v := os.Getenv("EXAMPLES_ROOT"); v != "" {
		roots.Examples = v
	}

	ctx, cancel := context.WithCancel(context.Background())

	recipes := handlers.NewRecipeRegistry(builtinPatchRecipes, os.Getenv("PATCH_RECIPE_DIR"), log)
	if err := recipes.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start recipe registry")
	}
	builtinCount, customCount := recipes.Counts()
	log.Info().Int("builtin", builtinCount).Int("custom", customCount).Msg("patch recipes loaded")

	registry := worker.NewRegistry()
	handlers.RegisterAll(registry, handlers.Deps{Roots: roots}, recipes)
	for _, name := range registry.Names() {
		log.Debug().Str("handler", name).Msg("registered handler")
	}

	rt := worker.New(b, registry, *queueName, log)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", *metricsPort)
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
	}()

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("worker stopped")
	}
	log.Info().Msg("worker stopped")
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func printBanner(queue string) {
	fmt.Printf(`
  _  __                         _
 (_)/ _| ___   _ __   _   _  ___| |__
 | | |_ / __| | '_ \ | | | |/ __| '_ \
 | |  _|\__ \ | | | || |_| | (__| |_) |
 |_|_|  |___/ |_| |_| \__,_|\___|_.__/

  IFC job-orchestration worker
  queue: %s

`, queue)
}

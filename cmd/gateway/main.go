// ifcjobs-gateway is the HTTP dispatch layer: it accepts job requests,
// enqueues them on the broker, and serves status/download endpoints.
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
	"github.com/nuulab/ifcjobs/pkg/gateway"
	"github.com/nuulab/ifcjobs/pkg/logging"
	"github.com/nuulab/ifcjobs/pkg/token"
	"github.com/nuulab/ifcjobs/pkg/volume"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	port := flag.Int("port", 8080, "Gateway HTTP port")
	brokerURL := flag.String("broker", "localhost:6379", "Broker (Redis-compatible) address")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*port = n
		}
	}
	if v := os.Getenv("BROKER_URL"); v != "" {
		*brokerURL = v
	}

	level := logging.InfoLevel
	if *verbose {
		level = logging.DebugLevel
	}
	logging.Init(logging.Config{Level: level})
	log := logging.WithComponent("gateway")

	printBanner()

	jobTTL := envDuration("JOB_RESULT_TTL_SECONDS", 24*time.Hour)
	tokenTTL := envDuration("DOWNLOAD_TOKEN_TTL_SECONDS", token.DefaultTTL)

	b, err := broker.NewRedisBroker(broker.Config{Address: *brokerURL, ResultTTL: jobTTL})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer b.Close()
	log.Info().Str("broker", *brokerURL).Msg("connected to broker")

	tokenStore, err := token.NewDragonflyStore(token.StoreConfig{Address: *brokerURL, Prefix: "ifcjobs"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect token store")
	}
	defer tokenStore.Close()
	tokens := token.New(tokenStore, tokenTTL)

	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		log.Warn().Msg("API_KEY not set; only CIDR-allowed clients will be admitted")
	}
	allowedCIDRs, err := gateway.ParseCIDRs(os.Getenv("ALLOWED_IP_RANGES"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ALLOWED_IP_RANGES")
	}

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

	srv := gateway.NewServer(gateway.Config{
		Broker: b,
		Tokens: tokens,
		Roots:  roots,
		AdmissionConfig: gateway.AdmissionConfig{
			APIKey:       apiKey,
			AllowedCIDRs: allowedCIDRs,
		},
		Logger: log,
	})

	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: mux,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	}()

	log.Info().Int("port", *port).Msg("gateway listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("gateway stopped")
	}
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

func printBanner() {
	fmt.Print(`
  _  __                         _
 (_)/ _| ___   _ __   _   _  ___| |__
 | | |_ / __| | '_ \ | | | |/ __| '_ \
 | |  _|\__ \ | | | || |_| | (__| |_) |
 |_|_|  |___/ |_| |_| \__,_|\___|_.__/

  IFC job-orchestration gateway
`)
}

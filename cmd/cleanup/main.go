// ifcjobs-cleanup runs the retention sweep over the shared output volume,
// using a distributed lock so at most one replica sweeps at a time.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nuulab/ifcjobs/pkg/broker"
	"github.com/nuulab/ifcjobs/pkg/logging"
	"github.com/nuulab/ifcjobs/pkg/volume"
)

func main() {
	brokerURL := flag.String("broker", "localhost:6379", "Broker (Redis-compatible) address, used only to coordinate the sweep lock")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if v := os.Getenv("BROKER_URL"); v != "" {
		*brokerURL = v
	}

	level := logging.InfoLevel
	if *verbose {
		level = logging.DebugLevel
	}
	logging.Init(logging.Config{Level: level})
	log := logging.WithComponent("cleanup")

	printBanner()

	b, err := broker.NewRedisBroker(broker.Config{Address: *brokerURL})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer b.Close()
	log.Info().Str("broker", *brokerURL).Msg("connected to broker")

	lock := broker.NewDistributedLock(b.Client())

	roots := volume.DefaultRoots()
	if v := os.Getenv("OUTPUT_ROOT"); v != "" {
		roots.Output = v
	}

	retention := envDuration("CLEANUP_RETENTION_SECONDS", volume.DefaultRetention)
	interval := envDuration("CLEANUP_INTERVAL_SECONDS", time.Hour)

	sweeper := volume.NewSweeper(roots, lock, log)
	sweeper.Retention = retention
	sweeper.Interval = interval

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
	}()

	log.Info().Dur("retention", retention).Dur("interval", interval).Msg("cleanup sweeper starting")
	sweeper.Run(ctx)
	log.Info().Msg("cleanup sweeper stopped")
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

  IFC job-orchestration output-volume sweeper
`)
}

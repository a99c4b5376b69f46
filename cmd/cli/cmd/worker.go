package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nuulab/ifcjobs/pkg/broker"
	"github.com/nuulab/ifcjobs/pkg/handlers"
	"github.com/nuulab/ifcjobs/pkg/logging"
	"github.com/nuulab/ifcjobs/pkg/volume"
	"github.com/nuulab/ifcjobs/pkg/worker"
)

var builtinPatchRecipes = []string{
	"ExtractElements",
	"Georeference",
	"ResetAbsoluteCoordinates",
	"SplitByBuildingStorey",
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerServeCmd)

	workerServeCmd.Flags().StringP("queue", "q", "", "queue name to consume (required)")
	workerServeCmd.Flags().String("broker", "localhost:6379", "broker (Redis-compatible) address")
	workerServeCmd.MarkFlagRequired("queue")
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a worker in-process",
}

// workerServeCmd runs the exact same Runtime as cmd/worker, as a
// convenience for operators bootstrapping a single queue without a
// separate binary invocation.
var workerServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Block popping jobs off a queue and process them",
	Run: func(cmd *cobra.Command, args []string) {
		queue, _ := cmd.Flags().GetString("queue")
		brokerAddr, _ := cmd.Flags().GetString("broker")

		level := logging.InfoLevel
		if verbose {
			level = logging.DebugLevel
		}
		logging.Init(logging.Config{Level: level})
		log := logging.WithQueue(queue)

		b, err := broker.NewRedisBroker(broker.Config{Address: brokerAddr, ResultTTL: 24 * time.Hour})
		if err != nil {
			fail(err.Error())
			os.Exit(1)
		}
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		recipes := handlers.NewRecipeRegistry(builtinPatchRecipes, os.Getenv("PATCH_RECIPE_DIR"), log)
		if err := recipes.Start(ctx); err != nil {
			fail(err.Error())
			os.Exit(1)
		}

		registry := worker.NewRegistry()
		handlers.RegisterAll(registry, handlers.Deps{Roots: volume.DefaultRoots()}, recipes)

		rt := worker.New(b, registry, queue, log)

		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			cancel()
		}()

		info("Worker serving queue " + cyan(queue))
		if err := rt.Run(ctx); err != nil {
			fail(err.Error())
			os.Exit(1)
		}
	},
}

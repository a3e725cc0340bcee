package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sahil-03/fleetctl/pkg/config"
	"github.com/sahil-03/fleetctl/pkg/fleetctl"
	"github.com/sahil-03/fleetctl/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the queue, autoscaler, dispatcher, and Control API",
	Long: `serve loads the operator configuration, brings up the request
queue, the autoscaler, the dispatcher pool, and the Control API, and
runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		apiAddr, _ := cmd.Flags().GetString("api-addr")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		spec, err := buildSpecFromFlags(cmd, types.ShellCredentials{})
		if err != nil {
			return fmt.Errorf("building deployment spec for autoscaled replicas: %w", err)
		}

		fc, err := fleetctl.New(cfg, spec)
		if err != nil {
			return fmt.Errorf("wiring fleet controller: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		fc.StartWorkers(ctx)

		errCh := make(chan error, 1)
		go func() {
			if err := fc.Serve(apiAddr); err != nil {
				errCh <- fmt.Errorf("control API error: %v", err)
			}
		}()
		fmt.Printf("fleetctl serving on %s\n", apiAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\n%v\n", err)
		}

		cancel()
		fc.Stop()
		fmt.Println("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("config", "fleetctl.yaml", "Path to the operator configuration file")
	serveCmd.Flags().String("api-addr", "0.0.0.0:8080", "Address for the Control API")
	addSpecFlags(serveCmd)
}

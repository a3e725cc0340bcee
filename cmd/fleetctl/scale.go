package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sahil-03/fleetctl/pkg/config"
	"github.com/sahil-03/fleetctl/pkg/fleetctl"
	"github.com/sahil-03/fleetctl/pkg/types"
)

var scaleCmd = &cobra.Command{
	Use:   "scale",
	Short: "Set the fleet's replica count once, outside the autoscaler",
	Long: `scale is an operator override: it adds or removes replicas to
reach the requested count and exits, without starting the autoscaler,
dispatcher, or Control API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		replicas, _ := cmd.Flags().GetInt("replicas")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		spec, err := buildSpecFromFlags(cmd, types.ShellCredentials{})
		if err != nil {
			return fmt.Errorf("building deployment spec: %w", err)
		}

		fc, err := fleetctl.New(cfg, spec)
		if err != nil {
			return fmt.Errorf("wiring fleet controller: %w", err)
		}
		defer fc.Stop()

		if err := fc.Fleet.ScaleTo(context.Background(), replicas); err != nil {
			return fmt.Errorf("scaling fleet: %w", err)
		}
		fmt.Printf("fleet now at %d replicas\n", fc.Fleet.Count())
		return nil
	},
}

func init() {
	scaleCmd.Flags().String("config", "fleetctl.yaml", "Path to the operator configuration file")
	scaleCmd.Flags().Int("replicas", 0, "Target replica count")
	scaleCmd.MarkFlagRequired("replicas")
	addSpecFlags(scaleCmd)
}

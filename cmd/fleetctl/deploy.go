package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sahil-03/fleetctl/pkg/deploy"
	"github.com/sahil-03/fleetctl/pkg/packager"
	"github.com/sahil-03/fleetctl/pkg/types"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a model inference container onto a remote host",
	Long: `deploy runs the full sequence from spec.md §4.5 against a
single host: pre-flight, profiling, port allocation, packaging,
transfer, load, run, and the optional tunnel/prune steps. Exits 0 on
success; on failure the failing stage name is printed to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		user, _ := cmd.Flags().GetString("user")
		keyPath, _ := cmd.Flags().GetString("key")
		clusterID, _ := cmd.Flags().GetString("cluster-id")
		tunnel, _ := cmd.Flags().GetBool("tunnel")
		prune, _ := cmd.Flags().GetBool("prune")

		creds, err := types.NewKeyCredentials(host, user, keyPath, 0)
		if err != nil {
			return err
		}
		if clusterID == "" {
			clusterID = host
		}
		cluster := types.ClusterDescriptor{ClusterID: clusterID, Hostname: host, Username: user, KeyPath: keyPath}

		spec, err := buildSpecFromFlags(cmd, creds)
		if err != nil {
			return err
		}

		cli, err := packager.NewDockerClient()
		if err != nil {
			return err
		}
		defer cli.Close()

		executor := deploy.NewExecutor(packager.New(cli))
		result, err := executor.Execute(context.Background(), spec, cluster, deploy.Options{
			Tunnel:   tunnel,
			Prune:    prune,
			Progress: os.Stdout,
		})
		if err != nil {
			return err
		}

		fmt.Printf("deployed %s at %s\n", result.Replica.InstanceID, result.Replica.Endpoint)
		return nil
	},
}

func init() {
	deployCmd.Flags().String("host", "", "Remote host to deploy onto")
	deployCmd.Flags().String("user", "", "SSH username")
	deployCmd.Flags().String("key", "", "Path to the SSH private key")
	deployCmd.Flags().String("cluster-id", "", "Cluster id recorded on the resulting replica (defaults to host)")
	deployCmd.Flags().Bool("tunnel", false, "Open a local tunnel to the deployed replica")
	deployCmd.Flags().Bool("prune", false, "After deploying, wait for the new container to exit, then remove it and its image")
	deployCmd.MarkFlagRequired("host")
	deployCmd.MarkFlagRequired("user")
	deployCmd.MarkFlagRequired("key")
	addSpecFlags(deployCmd)
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/sahil-03/fleetctl/pkg/types"
)

// addSpecFlags registers the Deployment Spec flags shared by deploy, serve
// and scale (the latter two need a spec for replicas the fleet adds).
func addSpecFlags(cmd *cobra.Command) {
	cmd.Flags().String("model-ref", "", "Local model path or hosted repository URL")
	cmd.Flags().String("hf-token", "", "Hub token for a private hosted model")
	cmd.Flags().String("entrypoint", "", "Inference server entrypoint script")
	cmd.Flags().String("image-tag", "", "Tag to build and run the inference image under")
}

func buildSpecFromFlags(cmd *cobra.Command, creds types.ShellCredentials) (types.DeploymentSpec, error) {
	modelRefRaw, _ := cmd.Flags().GetString("model-ref")
	hfToken, _ := cmd.Flags().GetString("hf-token")
	entrypoint, _ := cmd.Flags().GetString("entrypoint")
	imageTag, _ := cmd.Flags().GetString("image-tag")

	modelRef, err := types.ParseModelRef(modelRefRaw, hfToken)
	if err != nil {
		return types.DeploymentSpec{}, err
	}
	return types.NewDeploymentSpec(modelRef, entrypoint, imageTag, creds)
}

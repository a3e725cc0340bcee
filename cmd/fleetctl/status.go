package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print queue and fleet stats from a running Control API",
	RunE: func(cmd *cobra.Command, args []string) error {
		apiAddr, _ := cmd.Flags().GetString("api-addr")

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/stats", apiAddr))
		if err != nil {
			return fmt.Errorf("reaching control API: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("control API returned %s: %s", resp.Status, body)
		}

		var pretty map[string]any
		if err := json.Unmarshal(body, &pretty); err != nil {
			return err
		}
		encoded, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}

func init() {
	statusCmd.Flags().String("api-addr", "127.0.0.1:8080", "Address of the running Control API")
}

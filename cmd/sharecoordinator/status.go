package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusAddr string

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running coordinator's /ready endpoint",
		RunE:  runStatus,
	}
	cmd.Flags().StringVar(&statusAddr, "metrics-addr", "localhost:9090", "address the target coordinator's metrics server listens on")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/ready", statusAddr))
	if err != nil {
		return fmt.Errorf("sharecoordinator: status: %w", err)
	}
	defer resp.Body.Close()

	var readiness struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
		Message    string            `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&readiness); err != nil {
		return fmt.Errorf("sharecoordinator: status: decode response: %w", err)
	}

	fmt.Printf("status: %s\n", readiness.Status)
	for name, state := range readiness.Components {
		fmt.Printf("  %-12s %s\n", name, state)
	}
	if readiness.Message != "" {
		fmt.Printf("message: %s\n", readiness.Message)
	}

	if readiness.Status != "ready" {
		return fmt.Errorf("coordinator not ready")
	}
	return nil
}

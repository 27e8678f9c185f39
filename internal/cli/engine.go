package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newEngineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Inspect the optimization engine",
	}
	cmd.AddCommand(newEngineHealthCmd(), newEngineJobsCmd())
	return cmd
}

func newEngineHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server and engine health",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/health")
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}

			var data map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			status, _ := data["status"].(string)
			engine, _ := data["engine"].(string)
			uptime, _ := data["uptime"].(string)
			fmt.Printf("Server: %s\n", status)
			fmt.Printf("Engine: %s\n", engine)
			if uptime != "" {
				fmt.Printf("Uptime: %s\n", uptime)
			}
			return nil
		},
	}
}

func newEngineJobsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent engine-side jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(fmt.Sprintf("/api/v1/engine/jobs?limit=%d", limit))
			if err != nil {
				return fmt.Errorf("list engine jobs: %w", err)
			}

			var data []map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(data) == 0 {
				fmt.Println("No engine jobs found.")
				return nil
			}

			fmt.Printf("%-20s  %-12s  %s\n", "ENGINE JOB", "STATUS", "SUBMITTED")
			fmt.Printf("%-20s  %-12s  %s\n", "----------", "------", "---------")
			for _, j := range data {
				id, _ := j["engine_job_id"].(string)
				st, _ := j["status"].(string)
				submitted, _ := j["submitted_at"].(string)
				fmt.Printf("%-20s  %-12s  %s\n", id, st, relativeTime(submitted))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum jobs to list")
	return cmd
}

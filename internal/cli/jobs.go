package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage scheduling jobs",
	}
	cmd.AddCommand(
		newJobsListCmd(),
		newJobsGetCmd(),
		newJobsCreateCmd(),
		newJobsRunCmd(),
		newJobsStopCmd(),
		newJobsDeleteCmd(),
	)
	return cmd
}

func newJobsListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduling jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/jobs"
			if status != "" {
				path += "?status=" + status
			}
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}

			var data []map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(data) == 0 {
				fmt.Println("No jobs found.")
				return nil
			}

			fmt.Printf("%-40s  %-10s  %-12s  %s\n", "ID", "NUMBER", "STATUS", "CREATED")
			fmt.Printf("%-40s  %-10s  %-12s  %s\n", "----", "------", "------", "-------")
			for _, job := range data {
				id, _ := job["id"].(string)
				number, _ := job["number"].(string)
				st, _ := job["status"].(string)
				createdAt, _ := job["created_at"].(string)
				fmt.Printf("%-40s  %-10s  %-12s  %s\n", id, number, st, relativeTime(createdAt))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n(%d of %d shown)\n", len(data), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCESS, FAILED, INFEASIBLE)")
	return cmd
}

func newJobsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job_id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/jobs/" + args[0])
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}

			var data map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			number, _ := data["number"].(string)
			status, _ := data["status"].(string)
			fmt.Printf("Job: %s\n", args[0])
			fmt.Printf("  Number:  %s\n", number)
			fmt.Printf("  Status:  %s\n", status)
			if start, ok := data["horizon_start"].(string); ok {
				end, _ := data["horizon_end"].(string)
				fmt.Printf("  Horizon: %s .. %s\n", start, end)
			}
			if trace, ok := data["engine_trace_id"].(string); ok && trace != "" {
				fmt.Printf("  Engine:  %s\n", trace)
			}
			if msg, ok := data["error_message"].(string); ok && msg != "" {
				fmt.Printf("  Error:   %s\n", msg)
			}
			if createdAt, ok := data["created_at"].(string); ok {
				fmt.Printf("  Created: %s\n", relativeTime(createdAt))
			}

			// List the job's plans inline.
			plansResp, err := client.Get("/api/v1/jobs/" + args[0] + "/plans")
			if err != nil {
				return nil
			}
			var plans []map[string]any
			if err := json.Unmarshal(plansResp.Data, &plans); err != nil || len(plans) == 0 {
				return nil
			}
			fmt.Println("  Plans:")
			for _, p := range plans {
				id, _ := p["id"].(string)
				num, _ := p["number"].(string)
				st, _ := p["status"].(string)
				best, _ := p["is_best"].(bool)
				marker := ""
				if best {
					marker = " *"
				}
				fmt.Printf("    - %s %s (%s)%s\n", num, id, st, marker)
			}
			return nil
		},
	}
}

func newJobsCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <spec.yaml>",
		Short: "Create a job from a spec file",
		Long:  "Read a job spec (YAML or JSON) and create a PENDING job. Use 'jobs run' to submit it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read spec: %w", err)
			}

			var spec map[string]any
			if err := yaml.Unmarshal(data, &spec); err != nil {
				return fmt.Errorf("parse spec: %w", err)
			}

			resp, err := client.Post("/api/v1/jobs", spec)
			if err != nil {
				return fmt.Errorf("create job: %w", err)
			}

			var job map[string]any
			if err := json.Unmarshal(resp.Data, &job); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			id, ok := job["id"].(string)
			if !ok {
				return fmt.Errorf("job response missing 'id' field")
			}
			number, _ := job["number"].(string)
			fmt.Printf("Job created: %s (%s)\n", id, number)
			return nil
		},
	}
}

func newJobsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job_id>",
		Short: "Submit a PENDING job to the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/jobs/"+args[0]+"/run", nil)
			if err != nil {
				return fmt.Errorf("run job: %w", err)
			}

			var job map[string]any
			if err := json.Unmarshal(resp.Data, &job); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			status, _ := job["status"].(string)
			fmt.Printf("Job %s: %s\n", args[0], status)
			return nil
		},
	}
}

func newJobsStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <job_id>",
		Short: "Stop a RUNNING job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Post("/api/v1/jobs/"+args[0]+"/stop", nil); err != nil {
				return fmt.Errorf("stop job: %w", err)
			}
			fmt.Printf("Job %s stopped.\n", args[0])
			return nil
		},
	}
}

func newJobsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job_id>",
		Short: "Delete a job and its plans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete("/api/v1/jobs/" + args[0]); err != nil {
				return fmt.Errorf("delete job: %w", err)
			}
			fmt.Printf("Job %s deleted.\n", args[0])
			return nil
		},
	}
}

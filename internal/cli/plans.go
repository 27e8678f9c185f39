package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPlansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect and manage plans",
	}
	cmd.AddCommand(
		newPlansListCmd(),
		newPlansGetCmd(),
		newPlansAdjustCmd(),
		newPlansPublishCmd(),
		newPlansDiscardCmd(),
		newPlansSetBestCmd(),
	)
	return cmd
}

func newPlansListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <job_id>",
		Short: "List a job's plans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/jobs/" + args[0] + "/plans")
			if err != nil {
				return fmt.Errorf("list plans: %w", err)
			}

			var data []map[string]any
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(data) == 0 {
				fmt.Println("No plans found.")
				return nil
			}

			fmt.Printf("%-40s  %-6s  %-10s  %-4s  %s\n", "ID", "NUMBER", "STATUS", "BEST", "CREATED")
			fmt.Printf("%-40s  %-6s  %-10s  %-4s  %s\n", "----", "------", "------", "----", "-------")
			for _, p := range data {
				id, _ := p["id"].(string)
				number, _ := p["number"].(string)
				st, _ := p["status"].(string)
				best := ""
				if b, _ := p["is_best"].(bool); b {
					best = "*"
				}
				createdAt, _ := p["created_at"].(string)
				fmt.Printf("%-40s  %-6s  %-10s  %-4s  %s\n", id, number, st, best, relativeTime(createdAt))
			}
			return nil
		},
	}
}

func newPlansGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <plan_id>",
		Short: "Show a plan with its schedule and conflicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Get("/api/v1/plans/" + id)
			if err != nil {
				return fmt.Errorf("get plan: %w", err)
			}
			var plan map[string]any
			if err := json.Unmarshal(resp.Data, &plan); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			number, _ := plan["number"].(string)
			status, _ := plan["status"].(string)
			fmt.Printf("Plan: %s\n", id)
			fmt.Printf("  Number: %s\n", number)
			fmt.Printf("  Status: %s\n", status)
			if b, _ := plan["is_best"].(bool); b {
				fmt.Println("  Best:   yes")
			}
			if kpi, ok := plan["kpi"].(map[string]any); ok {
				cost, _ := kpi["cost"].(float64)
				tardiness, _ := kpi["tardiness_minutes"].(float64)
				fmt.Printf("  KPI:    cost=%.1f tardiness=%dm\n", cost, int(tardiness))
			}

			printGantt(id)
			printConflicts(id)
			return nil
		},
	}
}

func printGantt(planID string) {
	resp, err := client.Get("/api/v1/plans/" + planID + "/gantt")
	if err != nil {
		return
	}
	var data struct {
		Rows []struct {
			LineID    string `json:"line_id"`
			BizDate   string `json:"biz_date"`
			ShiftCode string `json:"shift_code"`
			TotalQty  int    `json:"total_qty"`
			SetupMin  int    `json:"setup_minutes"`
			Buckets   []struct {
				OrderID string `json:"order_id"`
				Seq     int    `json:"seq"`
				Qty     int    `json:"qty"`
			} `json:"buckets"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || len(data.Rows) == 0 {
		return
	}
	fmt.Println("  Schedule:")
	for _, row := range data.Rows {
		fmt.Printf("    %s %s/%s  qty=%d setup=%dm\n", row.LineID, row.BizDate, row.ShiftCode, row.TotalQty, row.SetupMin)
		for _, b := range row.Buckets {
			fmt.Printf("      %d. %s x%d\n", b.Seq, b.OrderID, b.Qty)
		}
	}
}

func printConflicts(planID string) {
	resp, err := client.Get("/api/v1/plans/" + planID + "/conflicts")
	if err != nil {
		return
	}
	var conflicts []map[string]any
	if err := json.Unmarshal(resp.Data, &conflicts); err != nil || len(conflicts) == 0 {
		return
	}
	fmt.Println("  Conflicts:")
	for _, c := range conflicts {
		sev, _ := c["severity"].(string)
		typ, _ := c["type"].(string)
		msg, _ := c["message"].(string)
		fmt.Printf("    [%s] %s: %s\n", sev, typ, msg)
	}
}

func newPlansAdjustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adjust <plan_id> <changes.yaml>",
		Short: "Apply structural edits to a DRAFT plan",
		Long:  "Read a change list (YAML or JSON) and apply it atomically to the plan.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read changes: %w", err)
			}
			var changes []map[string]any
			if err := yaml.Unmarshal(data, &changes); err != nil {
				return fmt.Errorf("parse changes: %w", err)
			}

			resp, err := client.Post("/api/v1/plans/"+args[0]+"/adjust", map[string]any{"changes": changes})
			if err != nil {
				return fmt.Errorf("adjust plan: %w", err)
			}

			var result map[string]any
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			logID, _ := result["log_id"].(string)
			fmt.Printf("Plan %s adjusted (%d changes, log %s)\n", args[0], len(changes), logID)
			if cs, ok := result["conflicts"].([]any); ok && len(cs) > 0 {
				fmt.Printf("  %d conflict(s) after adjustment; run 'plans get %s' for details.\n", len(cs), args[0])
			}
			return nil
		},
	}
}

func newPlansPublishCmd() *cobra.Command {
	var noOrders bool

	cmd := &cobra.Command{
		Use:   "publish <plan_id>",
		Short: "Publish a DRAFT plan to execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/plans/" + args[0] + "/publish"
			if noOrders {
				path += "?generate_orders=false"
			}
			resp, err := client.Post(path, nil)
			if err != nil {
				return fmt.Errorf("publish plan: %w", err)
			}

			var report map[string]any
			if err := json.Unmarshal(resp.Data, &report); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Printf("Plan %s published.\n", args[0])
			if wos, ok := report["work_orders"].(float64); ok && wos > 0 {
				fmt.Printf("  Work orders: %d\n", int(wos))
			}
			if failed, ok := report["failed_bucket_ids"].([]any); ok && len(failed) > 0 {
				fmt.Printf("  Failed emissions: %d (see server log)\n", len(failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noOrders, "no-orders", false, "Publish without emitting work orders")
	return cmd
}

func newPlansDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard <plan_id>",
		Short: "Discard a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Post("/api/v1/plans/"+args[0]+"/discard", nil); err != nil {
				return fmt.Errorf("discard plan: %w", err)
			}
			fmt.Printf("Plan %s discarded.\n", args[0])
			return nil
		},
	}
}

func newPlansSetBestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-best <plan_id>",
		Short: "Mark a plan as its job's best candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Post("/api/v1/plans/"+args[0]+"/set-best", nil); err != nil {
				return fmt.Errorf("set best plan: %w", err)
			}
			fmt.Printf("Plan %s marked best.\n", args[0])
			return nil
		},
	}
}

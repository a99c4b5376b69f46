package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(jobCmd)

	jobCmd.AddCommand(jobEnqueueCmd)
	jobCmd.AddCommand(jobStatusCmd)

	jobEnqueueCmd.Flags().StringP("path", "p", "", "gateway enqueue path, e.g. /ifcconvert (required)")
	jobEnqueueCmd.Flags().StringP("payload", "d", "{}", "job request body (JSON)")
	jobEnqueueCmd.MarkFlagRequired("path")
}

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Enqueue and inspect jobs",
	Long:  `Enqueue jobs against the gateway and poll their status.`,
}

var jobEnqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue a job on the gateway",
	Long:  `Posts a job request to one of the gateway's per-kind enqueue paths (e.g. /ifcconvert, /ifcclash, /patch/execute).`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("path")
		payloadStr, _ := cmd.Flags().GetString("payload")

		var payload interface{}
		if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
			fail(fmt.Sprintf("Invalid JSON payload: %v", err))
			return
		}

		client := NewAPIClient()
		var resp struct {
			JobID string `json:"job_id"`
		}
		if err := client.Post(path, payload, &resp); err != nil {
			fail(fmt.Sprintf("Failed to enqueue: %v", err))
			return
		}

		success(fmt.Sprintf("Job enqueued: %s", cyan(resp.JobID)))
	},
}

var jobStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Get job status",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]

		client := NewAPIClient()
		var job struct {
			ID         string      `json:"id"`
			Status     string      `json:"status"`
			EnqueuedAt string      `json:"enqueued_at"`
			StartedAt  string      `json:"started_at,omitempty"`
			EndedAt    string      `json:"ended_at,omitempty"`
			Result     interface{} `json:"result,omitempty"`
			Error      interface{} `json:"error,omitempty"`
		}

		if err := client.Get(fmt.Sprintf("/jobs/%s/status", jobID), &job); err != nil {
			fail(fmt.Sprintf("Failed to get status: %v", err))
			return
		}

		fmt.Println(bold("Job Status"))
		fmt.Println()

		statusColor := green
		switch job.Status {
		case "failed", "timed_out":
			statusColor = red
		case "queued", "started":
			statusColor = yellow
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID:\t%s\n", cyan(job.ID))
		fmt.Fprintf(w, "Status:\t%s\n", statusColor(job.Status))
		fmt.Fprintf(w, "Enqueued:\t%s\n", job.EnqueuedAt)
		if job.StartedAt != "" {
			fmt.Fprintf(w, "Started:\t%s\n", job.StartedAt)
		}
		if job.EndedAt != "" {
			fmt.Fprintf(w, "Ended:\t%s\n", job.EndedAt)
		}
		w.Flush()

		if job.Error != nil {
			fmt.Println()
			fmt.Println(bold("Error:"))
			data, _ := json.MarshalIndent(job.Error, "", "  ")
			fmt.Println(red(string(data)))
		}
		if job.Result != nil {
			fmt.Println()
			fmt.Println(bold("Result:"))
			data, _ := json.MarshalIndent(job.Result, "", "  ")
			fmt.Println(string(data))
		}
	},
}

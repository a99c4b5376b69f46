package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueDepthCmd)
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Queue operations",
}

var queueDepthCmd = &cobra.Command{
	Use:   "depth",
	Short: "Show depth and health for every known queue",
	Long:  `Calls the gateway's /admin/queues endpoint, which reports each queue's depth and symbolic health (healthy, waiting, unreachable).`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(bold("Queue Depth"))
		fmt.Println()

		client := NewAPIClient()
		var resp struct {
			Queues []struct {
				Name  string `json:"name"`
				Depth int64  `json:"depth"`
				State string `json:"state"`
			} `json:"queues"`
		}

		if err := client.Get("/admin/queues", &resp); err != nil {
			fail(fmt.Sprintf("Failed to fetch queue stats: %v", err))
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "QUEUE\tDEPTH\tSTATE")
		fmt.Fprintln(w, "-----\t-----\t-----")

		for _, q := range resp.Queues {
			stateColor := green
			switch {
			case strings.HasPrefix(q.State, "waiting"):
				stateColor = yellow
			case q.State == "unreachable":
				stateColor = red
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", cyan(q.Name), q.Depth, stateColor(q.State))
		}
		w.Flush()
	},
}

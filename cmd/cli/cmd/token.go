package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenMintCmd)

	tokenMintCmd.Flags().StringP("file", "f", "", "output file path as '<kind>/<filename>', e.g. clash/report.json (required)")
	tokenMintCmd.MarkFlagRequired("file")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage artifact download tokens",
}

var tokenMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a download token for a produced artifact",
	Long:  `Calls /create_download_link for an output path produced by a finished job, printing the token and its expiry.`,
	Run: func(cmd *cobra.Command, args []string) {
		filePath, _ := cmd.Flags().GetString("file")

		client := NewAPIClient()
		var resp struct {
			Token     string `json:"token"`
			ExpiresAt string `json:"expires_at"`
		}

		req := map[string]string{"file_path": filePath}
		if err := client.Post("/create_download_link", req, &resp); err != nil {
			fail(fmt.Sprintf("Failed to mint token: %v", err))
			return
		}

		success(fmt.Sprintf("Token minted: %s", cyan(resp.Token)))
		fmt.Printf("Expires at: %s\n", resp.ExpiresAt)
		fmt.Printf("Download:   %s/download/%s\n", NewAPIClient().BaseURL, resp.Token)
	},
}

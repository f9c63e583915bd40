package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
)

var streamsCmd = &cobra.Command{
	Use:   "streams",
	Short: "List the available streams",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, stream := range domain.AllStreams {
			mode := "full refresh"
			if stream.Incremental() {
				mode = "incremental"
			}
			cmd.Printf("%-10s key=%-8s %s\n", stream, stream.PrimaryKey(), mode)
		}
	},
}

func init() {
	rootCmd.AddCommand(streamsCmd)
}

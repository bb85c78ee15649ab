package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/venus/backend"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List registered backends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		names := backend.Available()
		if len(names) == 0 {
			fmt.Fprintln(out, "no backends registered")
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

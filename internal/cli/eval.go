package cli

import (
	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run one evaluation pass over all rules and print statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().EvalOnce(cmd.Context())
	},
}

package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var DownCmd = &cobra.Command{
	Use:   "down [N]",
	Short: "Revert the last migration, the last N, or everything with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		all, _ := cmd.Flags().GetBool("all")
		if all && len(args) > 0 {
			return usagef("--all cannot be combined with a step count")
		}
		r, err := openRunner(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()

		switch {
		case all:
			return r.DownAll(ctx)
		case len(args) == 0:
			return r.Down(ctx)
		default:
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return usagef("invalid step count %q", args[0])
			}
			return r.DownN(ctx, n)
		}
	},
}

func init() {
	DownCmd.Flags().Bool("all", false, "revert every applied migration")
}

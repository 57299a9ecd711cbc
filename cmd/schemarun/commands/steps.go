package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var StepsCmd = &cobra.Command{
	Use:   "steps N",
	Short: "Migrate N steps forward (N > 0) or backward (N < 0)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return usagef("invalid step count %q", args[0])
		}
		r, err := openRunner(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
		return r.Steps(ctx, n)
	},
}

package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var UpCmd = &cobra.Command{
	Use:   "up [N]",
	Short: "Apply all pending migrations, or only the next N",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRunner(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()

		if len(args) == 0 {
			return r.Up(ctx)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return usagef("invalid step count %q", args[0])
		}
		return r.UpN(ctx, n)
	},
}

package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var GotoCmd = &cobra.Command{
	Use:   "goto V",
	Short: "Migrate up or down to version V (0 = baseline)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || v < 0 {
			return usagef("invalid target version %q", args[0])
		}
		r, err := openRunner(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
		return r.Goto(ctx, v)
	},
}

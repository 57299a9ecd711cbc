package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var ForceCmd = &cobra.Command{
	Use:   "force V",
	Short: "Overwrite the recorded version without running migrations (-1 or 0 = baseline)",
	Long: "Force writes the version state directly and clears the dirty flag. " +
		"No scripts run. This is the recovery path after a failed migration: " +
		"inspect the database, fix it by hand, then force the version it is really at.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || v < -1 {
			return usagef("invalid version %q (want -1, 0 or a positive version)", args[0])
		}
		r, err := openRunner(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
		return r.Force(ctx, v)
	},
}

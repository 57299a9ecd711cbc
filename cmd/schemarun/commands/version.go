package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current migration version and dirty state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := openRunner(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
		st, err := r.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), st.String())
		return nil
	},
}

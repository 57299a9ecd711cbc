package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var DropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete every object in the database's working namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		force, _ := cmd.Flags().GetBool("force")
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirmDrop(cmd.InOrStdin(), cmd.OutOrStdout()) {
			return nil
		}
		r, err := openRunner(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
		return r.Drop(ctx, force)
	},
}

func confirmDrop(in io.Reader, out io.Writer) bool {
	_, _ = fmt.Fprint(out, "Are you sure you want to drop the entire database schema? [y/N] ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

func init() {
	DropCmd.Flags().Bool("force", false, "drop even when the migration state is dirty")
	DropCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
}

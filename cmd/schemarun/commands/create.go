package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/schemarun"
)

var CreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Scaffold a new up/down migration pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return err
		}
		dir := strings.TrimPrefix(s.Source, "file://")
		if strings.TrimSpace(dir) == "" {
			dir = viper.GetString("source")
		}
		seq, _ := cmd.Flags().GetBool("seq")
		digits, _ := cmd.Flags().GetInt("digits")
		ext, _ := cmd.Flags().GetString("ext")

		up, down, err := schemarun.CreateMigration(schemarun.CreateOptions{
			Name:       args[0],
			Dir:        dir,
			Ext:        ext,
			Sequential: seq,
			SeqDigits:  digits,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), up)
		fmt.Fprintln(cmd.OutOrStdout(), down)
		return nil
	},
}

func init() {
	CreateCmd.Flags().Bool("seq", false, "use a sequential version instead of a timestamp")
	CreateCmd.Flags().Int("digits", 6, "zero-padding width for sequential versions")
	CreateCmd.Flags().String("ext", "sql", "script file extension")
}

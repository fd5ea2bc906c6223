package cli

import (
	"fmt"

	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create urduscribe config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Exists() && !initForce {
			fmt.Fprintf(cmd.OutOrStdout(), "Config already exists: %s (use --force to overwrite)\n", config.SavePath())
			return nil
		}
		if initForce {
			if err := config.Save(config.DefaultConfig()); err != nil {
				return err
			}
		} else if err := config.Init(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", config.SavePath())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config with defaults")
	rootCmd.AddCommand(initCmd)
}

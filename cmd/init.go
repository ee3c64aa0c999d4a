package cmd

import (
	"github.com/spf13/cobra"

	"github.com/simview/simview/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize simview configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure simview for your project and generates a .simview.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

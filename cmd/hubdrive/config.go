//go:build !rp2040 && !rp2350

package main

import (
	"github.com/spf13/cobra"

	"hubdrive-go/services/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration run would use: board defaults, then --config,
then HUBDRIVE_* environment variables, then link flags. The output can be
saved and passed back with --config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		b, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

package main

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/twinrouter/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "twinrouter",
	Short: "twinrouter simulates a fabric of two routers and six endpoints.",
	Long: `twinrouter simulates a fabric of two four-port routers that ` +
		`serve six endpoints. Packets travel as four bytes per hop, are ` +
		`queued per source and destination port, and are arbitrated ` +
		`round robin.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFiles, _ := cmd.Flags().GetStringSlice("env")
		return config.LoadDotEnv(envFiles...)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("env", nil,
		"Files to load environment variables from. Defaults to .env.")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It exits through atexit so that traces are flushed.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

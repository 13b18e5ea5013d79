package cmd

import (
	"fmt"

	"github.com/safeher/safeher/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	config   *viper.Viper
	isDevEnv bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd *cobra.Command

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd = createRootCmd()
	rootCmd.Version = fmt.Sprintf("v%s", version.Version)
}

func createRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "safeher",
		Short: `safeher is the backend for the SafeHer personal-safety app.

It manages users, their emergency contacts & devices, and dispatches
emergency SMS alerts with the user's location to their primary contacts.`,
	}

	cmd.PersistentFlags().BoolVarP(&isDevEnv, "dev", "", false, "run in development mode")

	return cmd
}

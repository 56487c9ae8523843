// Package cmd assembles the FaceWatch-Go command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jvaltonen/facewatch-go/cmd/realtime"
	"github.com/jvaltonen/facewatch-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "facewatch",
		Short: "FaceWatch-Go CLI",
		Long:  "Face recognition attendance monitoring from a live camera stream.",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(realtime.Command(settings))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.Attendance.LedgerPath, "ledger", viper.GetString("attendance.ledgerpath"), "Path to the attendance CSV file")
	cmd.PersistentFlags().StringVar(&settings.Detection.EncodingsPath, "encodings", viper.GetString("detection.encodingspath"), "Path to the known face encodings file")
}

// Package realtime implements the realtime attendance monitoring command.
package realtime

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jvaltonen/facewatch-go/internal/conf"
	"github.com/jvaltonen/facewatch-go/internal/monitor"
)

// Command creates a new command for realtime attendance monitoring.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Monitor attendance in realtime mode",
		Long:  "Start watching the camera stream and marking attendance for recognized faces.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return monitor.Run(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Stream.URL, "stream", viper.GetString("stream.url"), "HTTP MJPEG stream URL to watch")
	cmd.Flags().StringVar(&settings.Stream.FallbackDevice, "device", viper.GetString("stream.fallbackdevice"), "Local capture device used when the stream cannot be opened (e.g. /dev/video0)")
	cmd.Flags().StringVar(&settings.Detection.Endpoint, "detector", viper.GetString("detection.endpoint"), "URL of the face detection service")
	cmd.Flags().StringVar(&settings.Attendance.Window.Start, "windowstart", viper.GetString("attendance.window.start"), "Attendance window start (HH:MM)")
	cmd.Flags().StringVar(&settings.Attendance.Window.End, "windowend", viper.GetString("attendance.window.end"), "Attendance window end (HH:MM)")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the dashboard web server")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

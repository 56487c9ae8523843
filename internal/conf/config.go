// config.go: settings struct and viper loading for FaceWatch-Go.
package conf

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file
}

// StreamSettings contains settings for the live frame source.
type StreamSettings struct {
	URL            string // HTTP MJPEG stream URL, primary frame source
	FallbackDevice string // local capture device used when the initial open of URL fails
	FfmpegPath     string // path to ffmpeg binary for local device capture
	StallTimeout   int    // seconds without a frame before the source is considered stalled
}

// DetectionSettings contains settings for the external face detection service.
type DetectionSettings struct {
	Endpoint      string  // URL of the detection/embedding service
	Timeout       int     // request timeout in seconds, 0 for none
	EncodingsPath string  // path to the known face encodings file
	MaxDistance   float64 // embedding distance at or above which a match is Unknown
}

// AttendanceSettings contains the classification window and ledger location.
type AttendanceSettings struct {
	Window struct {
		Start string // window start in HH:MM form
		End   string // window end in HH:MM form
	}
	LedgerPath string // path to the attendance CSV file
}

// MQTTSettings contains settings for MQTT integration.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT
	Broker   string // MQTT broker (tcp://host:port)
	Topic    string // MQTT topic for attendance events
	Username string // MQTT username
	Password string // MQTT password
	Retain   bool   // true to retain messages at the broker
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus compatible telemetry endpoint
	Listen  string // IP address and port to listen on
}

// Settings contains all configuration options for the FaceWatch-Go application.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this FaceWatch-Go node
		Log  LogConfig // logging configuration
	}

	Stream     StreamSettings     // frame source settings
	Detection  DetectionSettings  // external detection capability settings
	Attendance AttendanceSettings // attendance window and ledger settings

	WebServer struct {
		Debug   bool   // true to enable debug mode
		Enabled bool   // true to enable web server
		Port    string // port for web server
	}

	MQTT      MQTTSettings      // MQTT integration settings
	Telemetry TelemetrySettings // telemetry settings

	Output struct {
		SQLite struct {
			Enabled bool   // true to mirror attendance records into SQLite
			Path    string // path to sqlite database
		}
		MySQL struct {
			Enabled  bool   // true to mirror attendance records into MySQL
			Username string // MySQL username
			Password string // MySQL password
			Database string // MySQL database name
			Host     string // MySQL host
			Port     string // MySQL port
		}
	}
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment into a Settings struct.
// A missing config file is not an error: defaults are used and a warning is
// logged, so a bare checkout still starts.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Warn("config file not found, using defaults", "paths", configPaths)
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the config search paths in priority order:
// working directory first, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Headless systems without HOME still get the working directory.
		return []string{"."}, nil
	}
	return []string{".", filepath.Join(configDir, "facewatch-go")}, nil
}

// Setting returns the current settings instance, loading it if needed.
func Setting() *Settings {
	settingsMutex.RLock()
	if settingsInstance != nil {
		defer settingsMutex.RUnlock()
		return settingsInstance
	}
	settingsMutex.RUnlock()

	if _, err := Load(); err != nil {
		slog.Error("error loading settings", "error", err)
		return nil
	}
	return settingsInstance
}

// DetectionTimeout returns the detector request timeout as a duration.
func (s *Settings) DetectionTimeout() time.Duration {
	return time.Duration(s.Detection.Timeout) * time.Second
}

// StreamStallTimeout returns the frame stall watchdog threshold as a duration.
func (s *Settings) StreamStallTimeout() time.Duration {
	return time.Duration(s.Stream.StallTimeout) * time.Second
}

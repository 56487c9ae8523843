// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "FaceWatch-Go")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "facewatch.log")

	viper.SetDefault("stream.url", "http://192.168.1.100:81/stream")
	viper.SetDefault("stream.fallbackdevice", "/dev/video0")
	viper.SetDefault("stream.ffmpegpath", "ffmpeg")
	viper.SetDefault("stream.stalltimeout", 10)

	viper.SetDefault("detection.endpoint", "http://localhost:5100")
	viper.SetDefault("detection.timeout", 10)
	viper.SetDefault("detection.encodingspath", "encodings.json")
	viper.SetDefault("detection.maxdistance", 0.6)

	viper.SetDefault("attendance.window.start", "08:00")
	viper.SetDefault("attendance.window.end", "11:00")
	viper.SetDefault("attendance.ledgerpath", "attendance.csv")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "facewatch/attendance")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "facewatch.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "facewatch")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "facewatch")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}

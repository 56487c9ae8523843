package conf

import (
	"log/slog"

	"github.com/jvaltonen/facewatch-go/internal/errors"
)

// ValidateSettings checks the loaded settings for configurations the service
// cannot run with. Soft problems (window format, missing encodings file) are
// deferred to the owning component and only logged here.
func ValidateSettings(s *Settings) error {
	if s.Stream.URL == "" && s.Stream.FallbackDevice == "" {
		return errors.Newf("no frame source configured: both stream.url and stream.fallbackdevice are empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if s.Stream.StallTimeout <= 0 {
		slog.Warn("stream.stalltimeout must be positive, using 10s", "configured", s.Stream.StallTimeout)
		s.Stream.StallTimeout = 10
	}

	if s.Detection.MaxDistance <= 0 || s.Detection.MaxDistance > 2 {
		slog.Warn("detection.maxdistance out of range, using 0.6", "configured", s.Detection.MaxDistance)
		s.Detection.MaxDistance = 0.6
	}

	if s.Attendance.LedgerPath == "" {
		return errors.Newf("attendance.ledgerpath must not be empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if s.Output.SQLite.Enabled && s.Output.MySQL.Enabled {
		return errors.Newf("output.sqlite and output.mysql are mutually exclusive").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return nil
}

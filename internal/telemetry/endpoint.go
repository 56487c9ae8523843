package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jvaltonen/facewatch-go/internal/conf"
	"github.com/jvaltonen/facewatch-go/internal/logging"
)

// Endpoint serves the Prometheus scrape target on its own listener, separate
// from the dashboard server.
type Endpoint struct {
	server        *http.Server
	ListenAddress string
}

// NewEndpoint creates a new telemetry Endpoint.
func NewEndpoint(settings *conf.Settings) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, fmt.Errorf("metrics not enabled")
	}

	return &Endpoint{
		ListenAddress: settings.Telemetry.Listen,
	}, nil
}

// Start runs the HTTP server and shuts it down when quitChan closes.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	log := logging.ForService("telemetry")

	mux := http.NewServeMux()
	RegisterMetricsHandlers(mux)

	e.server = &http.Server{
		Addr:              e.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("telemetry endpoint starting", "listen", e.ListenAddress)
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("telemetry server failed", "listen", e.ListenAddress, "error", err)
		}
	}()

	go func() {
		<-quitChan
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.server.Shutdown(ctx); err != nil {
			log.Warn("telemetry server shutdown was not graceful", "error", err)
		}
	}()
}

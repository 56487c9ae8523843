// Package httpcontroller serves the dashboard API and the live video feed.
package httpcontroller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jvaltonen/facewatch-go/internal/attendance"
	"github.com/jvaltonen/facewatch-go/internal/conf"
	"github.com/jvaltonen/facewatch-go/internal/datastore"
	"github.com/jvaltonen/facewatch-go/internal/facedet"
	"github.com/jvaltonen/facewatch-go/internal/frame"
	"github.com/jvaltonen/facewatch-go/internal/ledger"
	"github.com/jvaltonen/facewatch-go/internal/logging"
	"github.com/jvaltonen/facewatch-go/internal/pipeline"
)

// Server encapsulates the Echo server and the pipeline components the API
// reads from. All handlers are read-only: the pipeline goroutine is the sole
// writer of attendance state.
type Server struct {
	Echo        *echo.Echo
	Settings    *conf.Settings
	DS          datastore.Interface
	Tracker     *attendance.Tracker
	Ledger      *ledger.Ledger
	Registry    *facedet.Registry
	Broadcaster *pipeline.Broadcaster
	Sources     *frame.Manager

	webLogger *slog.Logger
}

// New initializes the HTTP server around the running pipeline. ds may be nil
// when no database output is enabled.
func New(settings *conf.Settings, ds datastore.Interface, tracker *attendance.Tracker,
	led *ledger.Ledger, registry *facedet.Registry, broadcaster *pipeline.Broadcaster,
	sources *frame.Manager) *Server {
	s := &Server{
		Echo:        echo.New(),
		Settings:    settings,
		DS:          ds,
		Tracker:     tracker,
		Ledger:      led,
		Registry:    registry,
		Broadcaster: broadcaster,
		Sources:     sources,
		webLogger:   logging.ForService("web"),
	}

	s.Echo.HideBanner = true
	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()
	s.Echo.Use(middleware.Recover())
	if settings.WebServer.Debug {
		s.Echo.Use(middleware.Logger())
	}

	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	api := s.Echo.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.GET("/attendance", s.handleAttendance)
	api.GET("/attendance/recent", s.handleRecent)

	s.Echo.GET("/video_feed", s.handleVideoFeed)
}

// Start begins serving and shuts the server down when quitChan closes.
func (s *Server) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	addr := ":" + s.Settings.WebServer.Port

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.webLogger.Info("web server starting", "addr", addr)
		if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.webLogger.Error("web server failed", "addr", addr, "error", err)
		}
	}()

	go func() {
		<-quitChan
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Echo.Shutdown(ctx); err != nil {
			s.webLogger.Warn("web server shutdown was not graceful", "error", err)
		}
	}()
}

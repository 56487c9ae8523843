package httpcontroller

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

const streamBoundary = "frame"

// handleVideoFeed streams annotated JPEG frames as multipart/x-mixed-replace,
// the format browsers render as live video in an img tag. The connection
// stays open until the client disconnects; a viewer that reads slowly misses
// frames rather than slowing the pipeline.
func (s *Server) handleVideoFeed(c echo.Context) error {
	frames, unsubscribe := s.Broadcaster.Subscribe()
	defer unsubscribe()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "multipart/x-mixed-replace; boundary="+streamBoundary)
	resp.Header().Set("Cache-Control", "no-cache")
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case jpeg := <-frames:
			if _, err := fmt.Fprintf(resp, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
				streamBoundary, len(jpeg)); err != nil {
				return nil
			}
			if _, err := resp.Write(jpeg); err != nil {
				return nil
			}
			if _, err := fmt.Fprint(resp, "\r\n"); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}

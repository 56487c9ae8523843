package frame

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	ferrors "github.com/jvaltonen/facewatch-go/internal/errors"
)

// maxFramePayload bounds a single part read so a misbehaving camera cannot
// exhaust memory. 8 MiB is far above any sane MJPEG frame.
const maxFramePayload = 8 << 20

// MJPEGOpener opens HTTP multipart MJPEG streams, the format ESP32-style
// camera modules serve.
type MJPEGOpener struct {
	URL    string
	Client *http.Client
}

// NewMJPEGOpener creates an opener for the given stream URL. The client has
// no overall timeout: the stream is long-lived and stall detection is the
// Manager's watchdog's job.
func NewMJPEGOpener(url string) *MJPEGOpener {
	return &MJPEGOpener{
		URL: url,
		Client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
	}
}

func (o *MJPEGOpener) Name() string { return o.URL }

// Open connects to the stream and validates the multipart content type.
func (o *MJPEGOpener) Open(ctx context.Context) (Source, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, o.URL, http.NoBody)
	if err != nil {
		cancel()
		return nil, ferrors.New(err).Component("frame-source").Category(ferrors.CategoryStreamSource).Build()
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		cancel()
		return nil, ferrors.New(err).Component("frame-source").Category(ferrors.CategoryStreamSource).
			Context("url", o.URL).Build()
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() //nolint:errcheck
		cancel()
		return nil, ferrors.Newf("stream returned status %d", resp.StatusCode).
			Component("frame-source").Category(ferrors.CategoryStreamSource).
			Context("url", o.URL).Build()
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close() //nolint:errcheck
		cancel()
		return nil, ferrors.Newf("stream content type %q is not multipart MJPEG", resp.Header.Get("Content-Type")).
			Component("frame-source").Category(ferrors.CategoryStreamSource).
			Context("url", o.URL).Build()
	}

	return &mjpegSource{
		name:   o.URL,
		body:   resp.Body,
		parts:  multipart.NewReader(resp.Body, params["boundary"]),
		cancel: cancel,
	}, nil
}

type mjpegSource struct {
	name   string
	body   io.ReadCloser
	parts  *multipart.Reader
	cancel context.CancelFunc
	seq    atomic.Uint64
}

// NextFrame reads the next multipart part and decodes it. Cancelling ctx
// aborts the blocked read by cancelling the underlying request.
func (s *mjpegSource) NextFrame(ctx context.Context) (*Frame, error) {
	type result struct {
		frame *Frame
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		frame, err := s.readFrame()
		ch <- result{frame, err}
	}()

	select {
	case <-ctx.Done():
		s.cancel()
		return nil, ctx.Err()
	case r := <-ch:
		return r.frame, r.err
	}
}

func (s *mjpegSource) readFrame() (*Frame, error) {
	part, err := s.parts.NextPart()
	if err != nil {
		return nil, fmt.Errorf("reading stream part: %w", err)
	}
	defer part.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(part, maxFramePayload))
	if err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}

	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Image:     img,
		Seq:       s.seq.Add(1),
		Timestamp: time.Now(),
		Source:    s.name,
	}, nil
}

func (s *mjpegSource) Close() error {
	s.cancel()
	return s.body.Close()
}

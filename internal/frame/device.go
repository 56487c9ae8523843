package frame

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"sync/atomic"
	"time"

	ferrors "github.com/jvaltonen/facewatch-go/internal/errors"
)

// DeviceOpener captures from a local video device by running ffmpeg as a
// child process and parsing the MJPEG stream it writes to stdout. Used as
// the fallback when the primary HTTP stream cannot be opened at startup.
type DeviceOpener struct {
	Device     string // e.g. /dev/video0
	FfmpegPath string
}

func (o *DeviceOpener) Name() string { return o.Device }

// Open starts the ffmpeg child process.
func (o *DeviceOpener) Open(ctx context.Context) (Source, error) {
	ffmpeg := o.FfmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-i", o.Device,
		"-f", "mjpeg",
		"-q:v", "5",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, ferrors.New(err).Component("frame-source").Category(ferrors.CategoryStreamSource).Build()
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, ferrors.New(err).Component("frame-source").Category(ferrors.CategoryStreamSource).
			Context("device", o.Device).Build()
	}

	return &deviceSource{
		name:   o.Device,
		cmd:    cmd,
		out:    bufio.NewReaderSize(stdout, 64<<10),
		cancel: cancel,
	}, nil
}

type deviceSource struct {
	name   string
	cmd    *exec.Cmd
	out    *bufio.Reader
	cancel context.CancelFunc
	seq    atomic.Uint64
}

// jpegSOI and jpegEOI delimit frames in a raw MJPEG byte stream.
var (
	jpegSOI = []byte{0xff, 0xd8}
	jpegEOI = []byte{0xff, 0xd9}
)

func (s *deviceSource) NextFrame(ctx context.Context) (*Frame, error) {
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

func (s *deviceSource) readFrame() (*Frame, error) {
	data, err := readJPEG(s.out)
	if err != nil {
		return nil, err
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

func (s *deviceSource) Close() error {
	s.cancel()
	// Reap the child so it doesn't linger as a zombie.
	return s.cmd.Wait()
}

// readJPEG scans the stream for the next start-of-image marker and returns
// everything through the matching end-of-image marker.
func readJPEG(r *bufio.Reader) ([]byte, error) {
	// Seek the SOI marker, discarding any partial frame before it.
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, io.ErrUnexpectedEOF
		}
		if b != jpegSOI[0] {
			continue
		}
		next, err := r.Peek(1)
		if err != nil {
			return nil, io.ErrUnexpectedEOF
		}
		if next[0] == jpegSOI[1] {
			break
		}
	}

	var buf bytes.Buffer
	buf.Write(jpegSOI)
	if _, err := r.Discard(1); err != nil {
		return nil, io.ErrUnexpectedEOF
	}

	prev := byte(0)
	for {
		if buf.Len() > maxFramePayload {
			return nil, ErrEmptyFrame
		}
		b, err := r.ReadByte()
		if err != nil {
			return nil, io.ErrUnexpectedEOF
		}
		buf.WriteByte(b)
		if prev == jpegEOI[0] && b == jpegEOI[1] {
			return buf.Bytes(), nil
		}
		prev = b
	}
}

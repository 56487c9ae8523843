package facedet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	ferrors "github.com/jvaltonen/facewatch-go/internal/errors"
	"github.com/jvaltonen/facewatch-go/internal/logging"
)

// maxErrorBody bounds how much of an error response is read for the message.
const maxErrorBody = 4 << 10

// HTTPDetector calls an external face detection service. The service accepts
// a JPEG upload and returns face boxes with their embedding vectors.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

// NewHTTPDetector creates a detector client for the given service endpoint.
// A zero timeout disables the per-request deadline.
func NewHTTPDetector(endpoint string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      logging.ForService("facedet"),
	}
}

type detectResponse struct {
	Faces []Detection `json:"faces"`
}

// Detect uploads the image and returns the faces the service found.
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	body, contentType, err := encodeUpload(img)
	if err != nil {
		return nil, ferrors.New(err).Component("facedet").Category(ferrors.CategoryDetection).Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, body)
	if err != nil {
		return nil, ferrors.New(err).Component("facedet").Category(ferrors.CategoryDetection).Build()
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, ferrors.New(err).Component("facedet").Category(ferrors.CategoryNetwork).
			Context("endpoint", d.endpoint).Build()
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, ferrors.Newf("detection service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)).
			Component("facedet").Category(ferrors.CategoryDetection).
			Context("endpoint", d.endpoint).Build()
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, ferrors.New(fmt.Errorf("decoding detection response: %w", err)).
			Component("facedet").Category(ferrors.CategoryDetection).Build()
	}

	d.log.Debug("detection completed",
		"faces", len(parsed.Faces),
		"elapsed_ms", time.Since(start).Milliseconds())
	return parsed.Faces, nil
}

func encodeUpload(img image.Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, "", err
	}
	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, "", fmt.Errorf("encoding frame: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

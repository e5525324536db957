package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel errors for typed error checking.
var (
	ErrUnavailable = errors.New("classifier unavailable")
	ErrBadResponse = errors.New("classifier returned malformed response")
)

// Face is one face the classifier found in a frame.
type Face struct {
	Confidence float64 `json:"confidence"`
	Sunglasses float64 `json:"sunglasses"` // 0-1 confidence that the face wears sunglasses
}

// Object is one labelled object the classifier found.
type Object struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detection is the raw classifier output for one image.
type Detection struct {
	Faces   []Face   `json:"faces"`
	Objects []Object `json:"objects"`
}

// Classifier is the opaque face/object detector the pipeline calls. The
// model itself is an external service; this engine only speaks its
// input/output contract.
type Classifier interface {
	Detect(ctx context.Context, image []byte) (*Detection, error)
}

// HTTPClassifier calls a remote vision service over HTTP. Every call carries
// its own timeout so a hanging service cannot stall concurrent analyses.
type HTTPClassifier struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

// Detect posts the image to the vision service and decodes the detection.
// An unconfigured endpoint reports ErrUnavailable so the pipeline can fail
// open.
func (c *HTTPClassifier) Detect(ctx context.Context, image []byte) (*Detection, error) {
	if c.endpoint == "" {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("building classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, body)
	}

	var det Detection
	if err := json.NewDecoder(resp.Body).Decode(&det); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadResponse, err)
	}
	return &det, nil
}

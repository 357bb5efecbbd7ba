// Package classifier talks to a TensorFlow Serving model that labels civic
// issue photos.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/samirrijal/civicconnect/internal/core/domain"
)

// InputSize is the square edge the model expects, in pixels.
const InputSize = 224

// Labels are the model's output classes, in output order.
var Labels = []string{"pothole", "garbage", "water"}

// TFServing implements ports.Classifier over the TF-Serving REST API.
type TFServing struct {
	client   *fasthttp.Client
	endpoint string
	timeout  time.Duration
}

// NewTFServing creates a client for {baseURL}/v1/models/{model}:predict.
func NewTFServing(baseURL, model string, timeout time.Duration) *TFServing {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TFServing{
		client: &fasthttp.Client{
			Name:                "civicconnect-classifier",
			MaxConnsPerHost:     16,
			MaxIdleConnDuration: 30 * time.Second,
		},
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/models/" + model + ":predict",
		timeout:  timeout,
	}
}

type predictRequest struct {
	Instances [][][][3]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error"`
}

// Classify decodes the image, scales it to the model input and returns the
// most likely label with its probability. SeverityScore is left to callers.
func (t *TFServing) Classify(ctx context.Context, r io.Reader) (*domain.Prediction, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable image: %v", domain.ErrInvalidInput, err)
	}

	body, err := json.Marshal(predictRequest{Instances: [][][][3]float32{Tensor(src)}})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(t.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBodyRaw(body)

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("tf-serving: %w", err)
	}

	var out predictResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("tf-serving: status %d: decode: %w", resp.StatusCode(), err)
	}
	if resp.StatusCode() != fasthttp.StatusOK || out.Error != "" {
		return nil, fmt.Errorf("tf-serving: status %d: %s", resp.StatusCode(), out.Error)
	}
	if len(out.Predictions) == 0 {
		return nil, fmt.Errorf("tf-serving: empty predictions")
	}
	return Best(out.Predictions[0])
}

// Best picks the highest-scoring label.
func Best(scores []float64) (*domain.Prediction, error) {
	if len(scores) != len(Labels) {
		return nil, fmt.Errorf("tf-serving: expected %d scores, got %d", len(Labels), len(scores))
	}
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return &domain.Prediction{Label: Labels[best], Confidence: scores[best]}, nil
}

// Tensor scales img to InputSize×InputSize and returns RGB values in [0,1],
// row-major.
func Tensor(img image.Image) [][][3]float32 {
	dst := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	rows := make([][][3]float32, InputSize)
	for y := 0; y < InputSize; y++ {
		row := make([][3]float32, InputSize)
		for x := 0; x < InputSize; x++ {
			i := dst.PixOffset(x, y)
			row[x] = [3]float32{
				float32(dst.Pix[i]) / 255,
				float32(dst.Pix[i+1]) / 255,
				float32(dst.Pix[i+2]) / 255,
			}
		}
		rows[y] = row
	}
	return rows
}

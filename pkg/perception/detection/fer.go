package detection

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/teslashibe/go-moodcam/pkg/perception"
	"gocv.io/x/gocv"
)

const ferInputSize = 64

// ferLabels is the FER+ output order. Contempt has no label of its own and
// is folded into disgusted.
var ferLabels = []perception.ExpressionLabel{
	perception.Neutral,
	perception.Happy,
	perception.Surprised,
	perception.Sad,
	perception.Angry,
	perception.Disgusted,
	perception.Fearful,
	perception.Disgusted, // contempt
}

// Expression classifies face crops with the FER+ network.
type Expression struct {
	net gocv.Net
	mu  sync.Mutex
}

// NewExpression loads the FER+ model.
func NewExpression(cfg Config) (*Expression, error) {
	path := cfg.Path(cfg.ExpressionModel)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("expression model not found: %s", path)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load expression model from %s", path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &Expression{net: net}, nil
}

// Classify scores the face inside box. The box is clipped to img.
func (e *Expression) Classify(img gocv.Mat, box perception.Rect) (perception.Expressions, error) {
	rect := clip(box, img.Cols(), img.Rows())
	if rect.Empty() {
		return nil, fmt.Errorf("face box outside image")
	}

	roi := img.Region(rect)
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)

	blob := gocv.BlobFromImage(gray, 1.0, image.Pt(ferInputSize, ferInputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	e.mu.Lock()
	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	e.mu.Unlock()
	defer out.Close()

	logits, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read expression output: %w", err)
	}
	if len(logits) < len(ferLabels) {
		return nil, fmt.Errorf("expression output has %d values, want %d", len(logits), len(ferLabels))
	}
	return toExpressions(softmax(logits[:len(ferLabels)])), nil
}

// Close releases the network.
func (e *Expression) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}

func softmax(logits []float32) []float64 {
	maxV := math.Inf(-1)
	for _, v := range logits {
		maxV = math.Max(maxV, float64(v))
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func toExpressions(probs []float64) perception.Expressions {
	expr := make(perception.Expressions, len(perception.Labels))
	for _, l := range perception.Labels {
		expr[l] = 0
	}
	for i, p := range probs {
		if i < len(ferLabels) {
			expr[ferLabels[i]] += p
		}
	}
	return expr
}

func clip(box perception.Rect, w, h int) image.Rectangle {
	r := image.Rect(int(box.X), int(box.Y), int(box.X+box.W), int(box.Y+box.H))
	return r.Intersect(image.Rect(0, 0, w, h))
}

package detection

import (
	"context"
	"fmt"
	"sync"

	"github.com/teslashibe/go-moodcam/pkg/debug"
	"github.com/teslashibe/go-moodcam/pkg/perception"
	"gocv.io/x/gocv"
)

// Providers bundles the face, expression and object models behind the
// perception provider interfaces. Calls fail with ErrNotReady until Load
// has succeeded.
type Providers struct {
	cfg Config

	mu     sync.RWMutex
	faces  *YuNet
	expr   *Expression
	yolo   *YOLO
	loaded bool
}

// New creates unloaded providers.
func New(cfg Config) *Providers {
	return &Providers{cfg: cfg}
}

// Load reads all three models. On any failure the already loaded models are
// released and the error wraps perception.ErrModelLoad.
func (p *Providers) Load(ctx context.Context) error {
	if err := p.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", perception.ErrModelLoad, err)
	}

	faces, err := NewYuNet(p.cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", perception.ErrModelLoad, err)
	}
	if err := ctx.Err(); err != nil {
		faces.Close()
		return err
	}

	expr, err := NewExpression(p.cfg)
	if err != nil {
		faces.Close()
		return fmt.Errorf("%w: %v", perception.ErrModelLoad, err)
	}

	yolo, err := NewYOLO(p.cfg)
	if err != nil {
		faces.Close()
		expr.Close()
		return fmt.Errorf("%w: %v", perception.ErrModelLoad, err)
	}

	p.mu.Lock()
	p.faces, p.expr, p.yolo = faces, expr, yolo
	p.loaded = true
	p.mu.Unlock()
	return nil
}

// DetectFaces finds faces and classifies the expression of each.
func (p *Providers) DetectFaces(ctx context.Context, frame perception.Frame) ([]perception.FaceDetection, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.loaded {
		return nil, perception.ErrNotReady
	}

	img, err := frameMat(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	faces, err := p.faces.Detect(img)
	if err != nil {
		return nil, err
	}

	for i := range faces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		expr, err := p.expr.Classify(img, faces[i].Box)
		if err != nil {
			return nil, fmt.Errorf("classify face %d: %w", i, err)
		}
		faces[i].Expressions = expr
	}

	if len(faces) > 0 {
		debug.FrameLog("frame %d: %d face(s)", frame.Seq, len(faces))
	}
	return faces, nil
}

// DetectObjects runs YOLO on the frame.
func (p *Providers) DetectObjects(ctx context.Context, frame perception.Frame) ([]perception.ObjectDetection, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.loaded {
		return nil, perception.ErrNotReady
	}

	img, err := frameMat(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	objs, err := p.yolo.Detect(img)
	if err != nil {
		return nil, err
	}
	if len(objs) > 0 {
		debug.FrameLog("frame %d: %d object(s)", frame.Seq, len(objs))
	}
	return objs, nil
}

// Close releases all loaded models.
func (p *Providers) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return nil
	}
	p.faces.Close()
	p.expr.Close()
	p.yolo.Close()
	p.loaded = false
	return nil
}

func frameMat(frame perception.Frame) (gocv.Mat, error) {
	if !frame.Valid() {
		return gocv.Mat{}, perception.ErrInvalidFrame
	}
	return gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pixels)
}

var (
	_ perception.FaceProvider   = (*Providers)(nil)
	_ perception.ObjectProvider = (*Providers)(nil)
)

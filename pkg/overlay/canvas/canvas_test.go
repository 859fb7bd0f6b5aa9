package canvas

import (
	"bytes"
	"image/jpeg"
	"testing"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-moodcam/pkg/overlay"
	"github.com/teslashibe/go-moodcam/pkg/perception"
)

func TestCanvasStartsBlank(t *testing.T) {
	c := New()
	defer c.Close()

	if !c.Blank() {
		t.Error("new canvas should be blank")
	}

	c.Resize(64, 48)
	if w, h := c.Size(); w != 64 || h != 48 {
		t.Errorf("Size: got %dx%d, want 64x48", w, h)
	}
	if !c.Blank() {
		t.Error("resized canvas should be blank")
	}
}

func TestCanvasDrawAndClear(t *testing.T) {
	c := New()
	defer c.Close()
	r := overlay.NewRenderer(c, overlay.DefaultStyle())
	r.Resize(200, 150)

	r.Render(perception.DetectionFrame{
		Faces: []perception.FaceDetection{{
			Box:         perception.Rect{X: 20, Y: 40, W: 60, H: 60},
			Landmarks:   []perception.Point{{X: 40, Y: 60}},
			Expressions: perception.Expressions{perception.Happy: 0.9},
		}},
	})
	if c.Blank() {
		t.Fatal("canvas should have drawings after Render")
	}

	r.Clear()
	if !c.Blank() {
		t.Error("canvas should be blank after Clear")
	}
}

func TestComposeProducesJPEG(t *testing.T) {
	c := New()
	defer c.Close()
	c.Resize(32, 24)
	c.DrawBox(perception.Rect{X: 2, Y: 2, W: 10, H: 10}, overlay.DefaultStyle().FaceColor)

	frame := perception.Frame{Width: 32, Height: 24, Pixels: make([]byte, 32*24*3)}
	data, err := c.Compose(frame, 80)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("bounds: got %v", b)
	}

	for _, p := range frame.Pixels {
		if p != 0 {
			t.Fatal("Compose must not modify the source frame")
		}
	}
}

func TestComposeRejectsInvalidFrame(t *testing.T) {
	c := New()
	defer c.Close()
	if _, err := c.Compose(perception.Frame{Width: 4, Height: 4}, 80); err == nil {
		t.Error("expected error for invalid frame")
	}
}

func TestBlendDrawsOverFrame(t *testing.T) {
	c := New()
	defer c.Close()
	c.Resize(32, 24)
	c.DrawBox(perception.Rect{X: 2, Y: 2, W: 10, H: 10}, overlay.DefaultStyle().FaceColor)

	frame := perception.Frame{Width: 32, Height: 24, Pixels: make([]byte, 32*24*3)}
	img, err := c.Blend(frame)
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	if gocv.CountNonZero(gray) == 0 {
		t.Error("blended frame should contain the box")
	}
	for _, b := range frame.Pixels {
		if b != 0 {
			t.Fatal("Blend must not modify the source frame")
		}
	}

	bad, err := c.Blend(perception.Frame{Width: 4})
	bad.Close()
	if err == nil {
		t.Error("Blend should reject an invalid frame")
	}
}

func TestPreviewKeepsNewestFrame(t *testing.T) {
	c := New()
	defer c.Close()
	p := NewPreview("test", c)
	defer p.drain()

	frame := perception.Frame{Width: 8, Height: 8, Pixels: make([]byte, 8*8*3)}
	p.Publish(frame, nil)
	p.Publish(frame, nil)
	p.Publish(perception.Frame{}, nil)

	if got := p.Dropped(); got != 1 {
		t.Errorf("Dropped: got %d, want 1", got)
	}
	if got := len(p.frames); got != 1 {
		t.Errorf("queued frames: got %d, want 1", got)
	}
}

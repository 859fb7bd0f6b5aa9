package overlay

import (
	"image/color"
	"sync"

	"github.com/teslashibe/go-moodcam/pkg/perception"
)

// Op is one recorded drawing operation.
type Op struct {
	Kind  string // "box", "point" or "text"
	Box   perception.Rect
	Point perception.Point
	Text  string
	Color color.RGBA
}

// Recorder is an in-memory Surface for testing. It keeps the operations
// drawn since the last Clear.
type Recorder struct {
	mu            sync.Mutex
	width, height int
	ops           []Op
	clears        int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
	r.ops = nil
}

func (r *Recorder) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
	r.clears++
}

func (r *Recorder) DrawBox(box perception.Rect, c color.RGBA) {
	r.add(Op{Kind: "box", Box: box, Color: c})
}

func (r *Recorder) DrawPoint(p perception.Point, c color.RGBA) {
	r.add(Op{Kind: "point", Point: p, Color: c})
}

func (r *Recorder) DrawText(text string, at perception.Point, c color.RGBA) {
	r.add(Op{Kind: "text", Text: text, Point: at, Color: c})
}

func (r *Recorder) add(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

// Ops returns the operations drawn since the last Clear.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op{}, r.ops...)
}

// Texts returns only the text operations.
func (r *Recorder) Texts() []string {
	var out []string
	for _, op := range r.Ops() {
		if op.Kind == "text" {
			out = append(out, op.Text)
		}
	}
	return out
}

// Blank reports whether nothing is drawn.
func (r *Recorder) Blank() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops) == 0
}

// Clears returns how many times Clear was called.
func (r *Recorder) Clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

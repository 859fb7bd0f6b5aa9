// Package perception defines the data exchanged between the frame providers,
// the detection loop, the overlay renderer and the expression aggregator.
//
// Nothing in this package depends on OpenCV. Concrete gocv-backed providers
// live in perception/detection.
package perception

import (
	"fmt"
	"sort"
)

// Rect is an axis-aligned box in frame pixel coordinates.
type Rect struct {
	X, Y float64 // Top-left corner
	W, H float64
}

// Center returns the center point of the box.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Empty reports whether the box has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Point is a landmark position in frame pixel coordinates.
type Point struct {
	X, Y float64
}

// ExpressionLabel names a facial expression category.
type ExpressionLabel string

// Known expression labels.
const (
	Neutral   ExpressionLabel = "neutral"
	Happy     ExpressionLabel = "happy"
	Sad       ExpressionLabel = "sad"
	Angry     ExpressionLabel = "angry"
	Fearful   ExpressionLabel = "fearful"
	Disgusted ExpressionLabel = "disgusted"
	Surprised ExpressionLabel = "surprised"
)

// Labels is the canonical label order. Arg-max ties resolve to the label
// that appears first here.
var Labels = []ExpressionLabel{Neutral, Happy, Sad, Angry, Fearful, Disgusted, Surprised}

// Known reports whether l is one of Labels.
func (l ExpressionLabel) Known() bool {
	for _, k := range Labels {
		if k == l {
			return true
		}
	}
	return false
}

// Expressions maps each label to a probability in [0,1].
type Expressions map[ExpressionLabel]float64

// Top returns the label with the highest score.
//
// Labels are scanned in canonical order with a strict greater-than, so the
// earliest label wins a tie. Unknown labels are scanned afterwards in
// lexicographic order. ok is false only for an empty map.
func (e Expressions) Top() (label ExpressionLabel, score float64, ok bool) {
	for _, l := range e.scanOrder() {
		s := e[l]
		if !ok || s > score {
			label, score, ok = l, s, true
		}
	}
	return label, score, ok
}

func (e Expressions) scanOrder() []ExpressionLabel {
	order := make([]ExpressionLabel, 0, len(e))
	for _, l := range Labels {
		if _, present := e[l]; present {
			order = append(order, l)
		}
	}
	var extra []ExpressionLabel
	for l := range e {
		if !l.Known() {
			extra = append(extra, l)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(order, extra...)
}

// FormatConfidence renders a probability as a percentage with two decimals,
// e.g. 0.91 -> "91.00%".
func FormatConfidence(score float64) string {
	return fmt.Sprintf("%.2f%%", score*100)
}

// FormatScore renders an object detection score with one decimal,
// e.g. 0.873 -> "87.3%".
func FormatScore(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

// FaceDetection is one detected face.
type FaceDetection struct {
	Box         Rect
	Landmarks   []Point // Optional; YuNet gives eyes, nose tip and mouth corners
	Score       float64 // Detector confidence
	Expressions Expressions
}

// ObjectDetection is one detected object.
type ObjectDetection struct {
	Box   Rect
	Label string
	Score float64
}

// Frame is a single captured video frame.
// Pixels holds packed BGR rows, three bytes per pixel.
type Frame struct {
	Seq    uint64
	Width  int
	Height int
	Pixels []byte
}

// Valid reports whether the pixel buffer matches the declared size.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pixels) == f.Width*f.Height*3
}

// DetectionFrame is the combined provider output for one loop iteration.
// A provider that failed leaves its slice nil and records the error.
type DetectionFrame struct {
	Seq        uint64
	Width      int
	Height     int
	Faces      []FaceDetection
	Objects    []ObjectDetection
	FacesErr   error
	ObjectsErr error
}

// FacesOK reports whether the face provider produced a result.
func (d DetectionFrame) FacesOK() bool { return d.FacesErr == nil }

// ObjectsOK reports whether the object provider produced a result.
func (d DetectionFrame) ObjectsOK() bool { return d.ObjectsErr == nil }

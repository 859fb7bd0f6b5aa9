package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-moodcam/pkg/perception"
	"gocv.io/x/gocv"
)

// yunetCols is the row width of FaceDetectorYN output:
// 0-3 box, 4-13 five landmarks as x,y pairs, 14 score.
const yunetCols = 15

// YuNet wraps OpenCV's FaceDetectorYN.
type YuNet struct {
	detector gocv.FaceDetectorYN
	mu       sync.Mutex
	size     image.Point
}

// NewYuNet loads the YuNet model.
func NewYuNet(cfg Config) (*YuNet, error) {
	path := cfg.Path(cfg.FaceModel)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("face model not found: %s", path)
	}

	size := image.Pt(cfg.FaceInputWidth, cfg.FaceInputHeight)
	detector := gocv.NewFaceDetectorYNWithParams(
		path,
		"",
		size,
		float32(cfg.FaceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNet{detector: detector, size: size}, nil
}

// Detect returns face boxes and landmarks in pixel coordinates of img.
// Expressions are left empty.
func (y *YuNet) Detect(img gocv.Mat) ([]perception.FaceDetection, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	if sz := image.Pt(img.Cols(), img.Rows()); sz != y.size {
		y.detector.SetInputSize(sz)
		y.size = sz
	}

	faces := gocv.NewMat()
	defer faces.Close()

	y.detector.Detect(img, &faces)
	if faces.Cols() < yunetCols {
		return nil, nil
	}

	out := make([]perception.FaceDetection, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		at := func(c int) float64 { return float64(faces.GetFloatAt(r, c)) }

		det := perception.FaceDetection{
			Box:   perception.Rect{X: at(0), Y: at(1), W: at(2), H: at(3)},
			Score: at(14),
		}
		for c := 4; c < 14; c += 2 {
			det.Landmarks = append(det.Landmarks, perception.Point{X: at(c), Y: at(c + 1)})
		}
		out = append(out, det)
	}
	return out, nil
}

// Close releases the detector.
func (y *YuNet) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.detector.Close()
	return nil
}

package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-moodcam/pkg/perception"
	"gocv.io/x/gocv"
)

// YOLO runs YOLOv8 object detection.
type YOLO struct {
	net       gocv.Net
	mu        sync.Mutex
	inputSize image.Point
	thresh    float32
	nms       float32
}

// NewYOLO loads the YOLOv8 model.
func NewYOLO(cfg Config) (*YOLO, error) {
	path := cfg.Path(cfg.ObjectModel)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("object model not found: %s", path)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLO{
		net:       net,
		inputSize: image.Pt(cfg.ObjectInputWidth, cfg.ObjectInputHeight),
		thresh:    cfg.ObjectThresh,
		nms:       cfg.ObjectNMSThresh,
	}, nil
}

// Detect finds objects in img.
func (d *YOLO) Detect(img gocv.Mat) ([]perception.ObjectDetection, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	// Output shape [1, 84, 8400]: 4 box values then 80 class scores per candidate.
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected YOLO output dims %v", sizes)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read YOLO output: %w", err)
	}
	return d.parse(data, sizes[1], sizes[2], float32(img.Cols()), float32(img.Rows())), nil
}

func (d *YOLO) parse(data []float32, cols, rows int, imgW, imgH float32) []perception.ObjectDetection {
	var (
		boxes       []image.Rectangle
		confidences []float32
		classIDs    []int
	)

	sx := imgW / float32(d.inputSize.X)
	sy := imgH / float32(d.inputSize.Y)

	for i := 0; i < rows; i++ {
		maxScore := float32(0)
		maxClass := 0
		for c := 4; c < cols; c++ {
			if s := data[c*rows+i]; s > maxScore {
				maxScore = s
				maxClass = c - 4
			}
		}
		if maxScore < d.thresh {
			continue
		}

		cx, cy := data[i], data[rows+i]
		w, h := data[2*rows+i], data[3*rows+i]
		boxes = append(boxes, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		confidences = append(confidences, maxScore)
		classIDs = append(classIDs, maxClass)
	}

	if len(boxes) == 0 {
		return nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.thresh, d.nms)
	out := make([]perception.ObjectDetection, 0, len(indices))
	for _, idx := range indices {
		b := boxes[idx]
		out = append(out, perception.ObjectDetection{
			Box:   perception.Rect{X: float64(b.Min.X), Y: float64(b.Min.Y), W: float64(b.Dx()), H: float64(b.Dy())},
			Label: ClassName(classIDs[idx]),
			Score: float64(confidences[idx]),
		})
	}
	return out
}

// Close releases the network.
func (d *YOLO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// ClassName returns the COCO name for a class ID.
func ClassName(id int) string {
	if id < 0 || id >= len(COCOClasses) {
		return fmt.Sprintf("class %d", id)
	}
	return COCOClasses[id]
}

// COCOClasses contains the 80 COCO class names in model output order.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

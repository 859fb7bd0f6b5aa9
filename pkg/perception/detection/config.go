// Package detection provides the gocv-backed face, expression and object
// providers.
package detection

import (
	"fmt"
	"path/filepath"
)

// Config holds model paths and thresholds for all providers.
type Config struct {
	ModelDir string `yaml:"dir"`

	FaceModel       string  `yaml:"face_model"`       // YuNet ONNX
	FaceThresh      float64 `yaml:"face_threshold"`   // Minimum face score
	FaceInputWidth  int     `yaml:"face_input_width"` // Initial YuNet input size
	FaceInputHeight int     `yaml:"face_input_height"`

	ExpressionModel string `yaml:"expression_model"` // FER+ ONNX

	ObjectModel       string  `yaml:"object_model"` // YOLOv8 ONNX
	ObjectThresh      float32 `yaml:"object_threshold"`
	ObjectNMSThresh   float32 `yaml:"object_nms_threshold"`
	ObjectInputWidth  int     `yaml:"object_input_width"`
	ObjectInputHeight int     `yaml:"object_input_height"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ModelDir:          "models",
		FaceModel:         "face_detection_yunet.onnx",
		FaceThresh:        0.6,
		FaceInputWidth:    320,
		FaceInputHeight:   320,
		ExpressionModel:   "emotion-ferplus-8.onnx",
		ObjectModel:       "yolov8n.onnx",
		ObjectThresh:      0.5,
		ObjectNMSThresh:   0.45,
		ObjectInputWidth:  640,
		ObjectInputHeight: 640,
	}
}

// Path resolves a model file name against ModelDir.
// Absolute names are returned unchanged.
func (c Config) Path(name string) string {
	if filepath.IsAbs(name) || c.ModelDir == "" {
		return name
	}
	return filepath.Join(c.ModelDir, name)
}

// Validate checks thresholds and sizes.
func (c Config) Validate() error {
	if c.FaceModel == "" || c.ExpressionModel == "" || c.ObjectModel == "" {
		return fmt.Errorf("detection: model file names must be set")
	}
	if c.FaceThresh <= 0 || c.FaceThresh >= 1 {
		return fmt.Errorf("detection: face_threshold must be in (0,1), got %v", c.FaceThresh)
	}
	if c.ObjectThresh <= 0 || c.ObjectThresh >= 1 {
		return fmt.Errorf("detection: object_threshold must be in (0,1), got %v", c.ObjectThresh)
	}
	if c.ObjectNMSThresh <= 0 || c.ObjectNMSThresh >= 1 {
		return fmt.Errorf("detection: object_nms_threshold must be in (0,1), got %v", c.ObjectNMSThresh)
	}
	if c.FaceInputWidth <= 0 || c.FaceInputHeight <= 0 || c.ObjectInputWidth <= 0 || c.ObjectInputHeight <= 0 {
		return fmt.Errorf("detection: input sizes must be positive")
	}
	return nil
}

package analyzer

import "fmt"

// NewFrameAnalyzer creates a frame analyzer for the zoom mode. Face based
// modes fall back to contrast analysis when no face detector is available.
func NewFrameAnalyzer(mode ZoomMode, faces FaceDetector) (FrameAnalyzer, error) {
	switch mode {
	case ZoomBreathing, ZoomOff:
		return nil, nil
	case ZoomFocal, "":
		return NewContrastAnalyzer(), nil
	case ZoomFace, ZoomHybrid:
		if faces == nil {
			return NewContrastAnalyzer(), nil
		}
		return &FaceAnalyzer{Faces: faces, Fallback: NewContrastAnalyzer()}, nil
	default:
		return nil, fmt.Errorf("unknown zoom mode: %s", mode)
	}
}

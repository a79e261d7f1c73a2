package analyzer

import "image"

// FrameFeatures summarises one sampled frame for zoom decisions
type FrameFeatures struct {
	FaceRatio       float64 // largest face area / frame area, 0 when no face
	GradientDensity float64 // fraction of pixels on strong edges
	FocusX          float64 // centre of the busiest region, fraction of width
	FocusY          float64 // centre of the busiest region, fraction of height
	HasFocus        bool
}

// FrameAnalyzer is the interface for frame analysis strategies
type FrameAnalyzer interface {
	Analyze(img image.Image) (FrameFeatures, error)
}

// FaceDetector is an optional capability. Implementations return face
// bounding boxes in image coordinates.
type FaceDetector interface {
	DetectFaces(img image.Image) ([]image.Rectangle, error)
}

// FaceAnalyzer layers face detection over a fallback analyzer.
type FaceAnalyzer struct {
	Faces    FaceDetector
	Fallback FrameAnalyzer
}

func (a *FaceAnalyzer) Analyze(img image.Image) (FrameFeatures, error) {
	f, err := a.Fallback.Analyze(img)
	if err != nil {
		return f, err
	}

	faces, err := a.Faces.DetectFaces(img)
	if err != nil || len(faces) == 0 {
		// no face: edge features only
		return f, nil
	}

	b := img.Bounds()
	frameArea := float64(b.Dx() * b.Dy())
	largest := faces[0]
	for _, r := range faces[1:] {
		if r.Dx()*r.Dy() > largest.Dx()*largest.Dy() {
			largest = r
		}
	}
	if frameArea > 0 {
		f.FaceRatio = float64(largest.Dx()*largest.Dy()) / frameArea
		f.FocusX = float64(largest.Min.X+largest.Dx()/2-b.Min.X) / float64(b.Dx())
		f.FocusY = float64(largest.Min.Y+largest.Dy()/2-b.Min.Y) / float64(b.Dy())
		f.HasFocus = true
	}
	return f, nil
}

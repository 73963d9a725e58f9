//go:build gocv
// +build gocv

package vision

import (
	"image"

	"gocv.io/x/gocv"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// ContourDetector ищет контур блистера по краям с морфологическим замыканием.
type ContourDetector struct{}

// NewContourDetector создаёт детектор на OpenCV.
func NewContourDetector() (*ContourDetector, error) {
	return &ContourDetector{}, nil
}

// Detect размывает кадр, ищет края Canny, замыкает их эллиптическим ядром и анализирует внешние контуры.
func (d *ContourDetector) Detect(frame *entity.Frame, params entity.DetectionParams) entity.DetectionResult {
	if !frame.Valid() {
		return entity.NotPresent()
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pix)
	if err != nil {
		return entity.NotPresent()
	}
	defer mat.Close()

	contours := d.contours(mat, params)
	return Analyze(contours, params)
}

// contours возвращает внешние контуры замкнутой карты краёв.
func (d *ContourDetector) contours(mat gocv.Mat, params entity.DetectionParams) [][]image.Point {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	blur := gocv.NewMat()
	defer blur.Close()
	k := params.BlurKernel
	gocv.GaussianBlur(gray, &blur, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blur, &edges, float32(params.CannyLow), float32(params.CannyHigh))

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(params.CloseSize, params.CloseSize))
	defer kernel.Close()

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(edges, &closed, gocv.MorphClose, kernel)

	found := gocv.FindContours(closed, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	out := make([][]image.Point, 0, found.Size())
	for i := 0; i < found.Size(); i++ {
		out = append(out, found.At(i).ToPoints())
	}
	return out
}

var _ port.AlignmentDetector = (*ContourDetector)(nil)

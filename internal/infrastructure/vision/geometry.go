package vision

import (
	"image"
	"math"

	"blister-inspector/internal/domain/entity"
)

// Moments holds the raw spatial moments of a closed polygon.
type Moments struct {
	M00 float64 // area
	M10 float64
	M01 float64
}

// PolygonMoments computes moments with Green's theorem, the same way OpenCV
// does for contours. The result is orientation independent.
func PolygonMoments(pts []image.Point) Moments {
	if len(pts) < 3 {
		return Moments{}
	}

	var a00, a10, a01 float64
	prev := pts[len(pts)-1]
	for _, p := range pts {
		xi, yi := float64(prev.X), float64(prev.Y)
		xj, yj := float64(p.X), float64(p.Y)
		cross := xi*yj - xj*yi
		a00 += cross
		a10 += cross * (xi + xj)
		a01 += cross * (yi + yj)
		prev = p
	}

	m := Moments{M00: a00 / 2, M10: a10 / 6, M01: a01 / 6}
	if m.M00 < 0 {
		m = Moments{M00: -m.M00, M10: -m.M10, M01: -m.M01}
	}
	return m
}

// BoundingBox returns the inclusive axis-aligned bounds of the points.
func BoundingBox(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Analyze picks the largest contour with area >= MinArea and checks whether
// its centroid lies inside the target circle. Ties keep the first contour.
func Analyze(contours [][]image.Point, params entity.DetectionParams) entity.DetectionResult {
	best := -1
	var bestMoments Moments
	for i, c := range contours {
		m := PolygonMoments(c)
		if m.M00 < float64(params.MinArea) {
			continue
		}
		if best < 0 || m.M00 > bestMoments.M00 {
			best = i
			bestMoments = m
		}
	}
	if best < 0 || bestMoments.M00 == 0 {
		return entity.NotPresent()
	}

	centroid := image.Pt(
		int(bestMoments.M10/bestMoments.M00),
		int(bestMoments.M01/bestMoments.M00),
	)
	target := params.Target()
	distance := math.Hypot(float64(centroid.X-target.X), float64(centroid.Y-target.Y))

	return entity.DetectionResult{
		Present:     true,
		Area:        bestMoments.M00,
		Centroid:    centroid,
		BoundingBox: BoundingBox(contours[best]),
		Distance:    distance,
		Centered:    distance <= float64(params.TargetRadius),
	}
}

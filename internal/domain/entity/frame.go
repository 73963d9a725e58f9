package entity

import (
	"image"
	"time"
)

// Frame is one camera image. It is never modified after capture.
type Frame struct {
	Seq        uint64    // sequence number from the source
	Width      int       // width in pixels
	Height     int       // height in pixels
	Pix        []byte    // BGR, 3 bytes per pixel, row-major
	CapturedAt time.Time // capture time
}

// Valid reports whether the pixel buffer matches the frame size.
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*3
}

// RGBA converts the frame into an image.RGBA copy.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Pix) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i+2]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i]
		img.Pix[j+3] = 0xff
	}
	return img
}

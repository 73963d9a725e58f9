package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"blister-inspector/internal/domain/entity"
)

// Encoder turns frames into the compressed images sent over the network.
type Encoder struct {
	Size    image.Point // target resolution, zero keeps the frame size
	Quality int         // JPEG quality 1..100
}

// NewEncoder returns an encoder producing size×size JPEGs.
func NewEncoder(size, quality int) *Encoder {
	return &Encoder{Size: image.Pt(size, size), Quality: quality}
}

// JPEG resizes the frame and encodes it as RGB JPEG.
func (e *Encoder) JPEG(frame *entity.Frame) ([]byte, error) {
	if !frame.Valid() {
		return nil, errors.New("invalid frame")
	}

	var img image.Image = frame.RGBA()
	if e.Size.X > 0 && e.Size.Y > 0 && (e.Size.X != frame.Width || e.Size.Y != frame.Height) {
		dst := image.NewRGBA(image.Rectangle{Max: e.Size})
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Base64 returns the JPEG as standard base64 text.
func (e *Encoder) Base64(frame *entity.Frame) (string, error) {
	data, err := e.JPEG(frame)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode reverses Base64; it is what the classifier side does with a request.
func Decode(encoded string) (image.Image, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	return img, nil
}

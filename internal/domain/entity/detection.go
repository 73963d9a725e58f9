package entity

import (
	"fmt"
	"image"
)

// Upper bounds of the tuning controls on the line.
const (
	MaxBlurKernel   = 31
	MaxCannyValue   = 255
	MaxCloseSize    = 50
	MaxMinArea      = 20000
	MaxTargetX      = 1280
	MaxTargetY      = 960
	MaxTargetRadius = 800
)

// DetectionParams holds the tunable values of the alignment detector.
type DetectionParams struct {
	BlurKernel   int `yaml:"blur_kernel" json:"blur_kernel"`     // odd Gaussian kernel size
	CannyLow     int `yaml:"canny_low" json:"canny_low"`         // lower edge threshold
	CannyHigh    int `yaml:"canny_high" json:"canny_high"`       // upper edge threshold
	CloseSize    int `yaml:"close_size" json:"close_size"`       // elliptical closing element size
	MinArea      int `yaml:"min_area" json:"min_area"`           // minimum contour area in px²
	TargetX      int `yaml:"target_x" json:"target_x"`           // inspection point x
	TargetY      int `yaml:"target_y" json:"target_y"`           // inspection point y
	TargetRadius int `yaml:"target_radius" json:"target_radius"` // centering tolerance in px
}

// DefaultDetectionParams returns the values the line was commissioned with.
func DefaultDetectionParams() DetectionParams {
	return DetectionParams{
		BlurKernel:   19,
		CannyLow:     2,
		CannyHigh:    127,
		CloseSize:    18,
		MinArea:      1500,
		TargetX:      653,
		TargetY:      240,
		TargetRadius: 120,
	}
}

// Normalize rounds an even blur kernel up to the next odd size.
func (p DetectionParams) Normalize() DetectionParams {
	if p.BlurKernel >= 0 && p.BlurKernel%2 == 0 {
		p.BlurKernel++
	}
	return p
}

// Target returns the inspection point.
func (p DetectionParams) Target() image.Point {
	return image.Pt(p.TargetX, p.TargetY)
}

// Validate checks the parameters against the device bounds.
func (p DetectionParams) Validate() error {
	if p.BlurKernel < 1 || p.BlurKernel%2 == 0 {
		return fmt.Errorf("%w: blur kernel must be odd and >= 1, got %d", ErrInvalidParams, p.BlurKernel)
	}
	checks := []struct {
		name  string
		value int
		min   int
		max   int
	}{
		{"blur kernel", p.BlurKernel, 1, MaxBlurKernel},
		{"canny low", p.CannyLow, 0, MaxCannyValue},
		{"canny high", p.CannyHigh, 0, MaxCannyValue},
		{"close size", p.CloseSize, 1, MaxCloseSize},
		{"min area", p.MinArea, 0, MaxMinArea},
		{"target x", p.TargetX, 0, MaxTargetX},
		{"target y", p.TargetY, 0, MaxTargetY},
		{"target radius", p.TargetRadius, 0, MaxTargetRadius},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return fmt.Errorf("%w: %s must be in [%d, %d], got %d", ErrInvalidParams, c.name, c.min, c.max, c.value)
		}
	}
	if p.CannyLow > p.CannyHigh {
		return fmt.Errorf("%w: canny low %d is above canny high %d", ErrInvalidParams, p.CannyLow, p.CannyHigh)
	}
	return nil
}

// DetectionResult is the outcome of one alignment check.
type DetectionResult struct {
	Present     bool            // a pack contour was found
	Area        float64         // contour area in px²
	Centroid    image.Point     // centre of mass of the contour
	BoundingBox image.Rectangle // axis-aligned bounds
	Distance    float64         // distance from centroid to the target
	Centered    bool            // Present and Distance <= TargetRadius
}

// NotPresent is the result for frames without a usable contour.
func NotPresent() DetectionResult {
	return DetectionResult{}
}

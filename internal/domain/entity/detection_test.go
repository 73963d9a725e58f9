package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectionParams_DefaultsAreValid(t *testing.T) {
	require.NoError(t, DefaultDetectionParams().Validate())
}

func TestDetectionParams_Normalize(t *testing.T) {
	p := DefaultDetectionParams()
	p.BlurKernel = 18
	require.Equal(t, 19, p.Normalize().BlurKernel)

	p.BlurKernel = 0
	require.Equal(t, 1, p.Normalize().BlurKernel)

	p.BlurKernel = 7
	require.Equal(t, 7, p.Normalize().BlurKernel)
}

func TestDetectionParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DetectionParams)
	}{
		{"even kernel", func(p *DetectionParams) { p.BlurKernel = 4 }},
		{"zero kernel", func(p *DetectionParams) { p.BlurKernel = 0 }},
		{"kernel too big", func(p *DetectionParams) { p.BlurKernel = 33 }},
		{"negative canny", func(p *DetectionParams) { p.CannyLow = -1 }},
		{"canny too high", func(p *DetectionParams) { p.CannyHigh = 256 }},
		{"inverted canny", func(p *DetectionParams) { p.CannyLow = 200; p.CannyHigh = 100 }},
		{"zero close", func(p *DetectionParams) { p.CloseSize = 0 }},
		{"negative area", func(p *DetectionParams) { p.MinArea = -5 }},
		{"target outside", func(p *DetectionParams) { p.TargetX = 5000 }},
		{"negative radius", func(p *DetectionParams) { p.TargetRadius = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultDetectionParams()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidParams))
		})
	}
}

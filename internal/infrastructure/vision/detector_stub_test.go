//go:build !gocv
// +build !gocv

package vision

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"blister-inspector/internal/domain/entity"
)

func TestNewContourDetector_WithoutGoCV(t *testing.T) {
	d, err := NewContourDetector()
	require.Nil(t, d)
	require.True(t, errors.Is(err, entity.ErrVisionUnavailable))
}

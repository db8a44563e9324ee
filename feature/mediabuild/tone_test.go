package mediabuild_test

import (
	"image"
	"image/color"
	"testing"

	"photo-sync/feature/mediabuild"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestAnalyzeTone_Classification(t *testing.T) {
	tests := []struct {
		name     string
		color    color.Color
		toneType string
	}{
		{"Black", color.NRGBA{0, 0, 0, 255}, "low-key"},
		{"White", color.NRGBA{255, 255, 255, 255}, "high-key"},
		{"MidGray", color.NRGBA{128, 128, 128, 255}, "normal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := mediabuild.AnalyzeTone(uniformImage(10, 10, tt.color))
			assert.Equal(t, tt.toneType, analysis.ToneType)
		})
	}
}

func TestAnalyzeTone_Histogram(t *testing.T) {
	analysis := mediabuild.AnalyzeTone(uniformImage(8, 4, color.NRGBA{0, 0, 0, 255}))

	require.Len(t, analysis.Histogram, 64)

	total := 0
	for _, n := range analysis.Histogram {
		total += n
	}
	assert.Equal(t, 32, total, "every pixel lands in exactly one bin")

	// A uniform black frame is fully underexposed with zero contrast.
	assert.Equal(t, 32, analysis.Histogram[0])
	assert.InDelta(t, 1.0, analysis.UnderexposedRatio, 1e-9)
	assert.InDelta(t, 0.0, analysis.OverexposedRatio, 1e-9)
	assert.InDelta(t, 0.0, analysis.Contrast, 1e-9)
}

func TestAnalyzeTone_EmptyImage(t *testing.T) {
	analysis := mediabuild.AnalyzeTone(image.NewNRGBA(image.Rect(0, 0, 0, 0)))

	assert.Equal(t, "normal", analysis.ToneType)
	assert.Len(t, analysis.Histogram, 64)
	assert.Zero(t, analysis.Brightness)
}

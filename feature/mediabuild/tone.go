package mediabuild

import (
	"image"
	"math"

	"photo-sync/feature/mediabuild/manifest"
)

const toneBins = 64

// AnalyzeTone computes the luminance histogram and exposure statistics for
// a decoded image. It is pure and cannot fail; an empty image yields a
// neutral analysis.
func AnalyzeTone(img image.Image) *manifest.ToneAnalysis {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()

	analysis := &manifest.ToneAnalysis{
		Histogram: make([]int, toneBins),
		ToneType:  "normal",
	}
	if total == 0 {
		return analysis
	}

	var sum, sumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// Rec. 601 luma on 16-bit channel values, scaled to [0,1].
			luma := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535.0
			bin := int(luma * toneBins)
			if bin >= toneBins {
				bin = toneBins - 1
			}
			analysis.Histogram[bin]++
			sum += luma
			sumSq += luma * luma
		}
	}

	n := float64(total)
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}

	analysis.Brightness = mean
	analysis.Contrast = math.Sqrt(variance)

	// Bottom and top 1/8 of the range count as under/overexposed.
	edge := toneBins / 8
	var under, over int
	for i := 0; i < edge; i++ {
		under += analysis.Histogram[i]
		over += analysis.Histogram[toneBins-1-i]
	}
	analysis.UnderexposedRatio = float64(under) / n
	analysis.OverexposedRatio = float64(over) / n

	switch {
	case mean < 0.25:
		analysis.ToneType = "low-key"
	case mean > 0.75:
		analysis.ToneType = "high-key"
	}

	return analysis
}

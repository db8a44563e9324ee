package mediabuild

import (
	"bytes"
	"strings"

	"photo-sync/core/utils"
	"photo-sync/feature/mediabuild/manifest"

	"github.com/rwcarlsen/goexif/exif"
)

// ExtractEXIF pulls the manifest's EXIF subset from the raw (undecoded)
// image bytes. Returns an error when the file carries no parseable EXIF
// segment; individual missing tags are simply left zero.
func ExtractEXIF(raw []byte) (*manifest.EXIF, error) {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	out := &manifest.EXIF{}

	if tag, err := x.Get(exif.Make); err == nil {
		out.Make, _ = tag.StringVal()
	}
	if tag, err := x.Get(exif.Model); err == nil {
		out.Model, _ = tag.StringVal()
	}
	if tag, err := x.Get(exif.LensModel); err == nil {
		out.LensModel, _ = tag.StringVal()
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int(0); err == nil {
			out.ISO = v
		} else {
			// Some cameras store ISO as an ASCII tag.
			out.ISO = utils.ToInt(strings.Trim(tag.String(), `"`))
		}
	}
	if tag, err := x.Get(exif.FNumber); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			out.FNumber = float64(num) / float64(den)
		}
	}
	if tag, err := x.Get(exif.ExposureTime); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			out.ExposureTime = formatExposure(num, den)
		}
	}
	if tag, err := x.Get(exif.FocalLength); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			out.FocalLength = float64(num) / float64(den)
		}
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			out.Orientation = v
		}
	}
	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
		out.DateTimeOriginal, _ = tag.StringVal()
	}
	if lat, long, err := x.LatLong(); err == nil {
		out.GPSLatitude = &lat
		out.GPSLongitude = &long
	}

	return out, nil
}

// formatExposure renders an exposure rational the way photographers read
// it: fractional below a second, decimal seconds above.
func formatExposure(num, den int64) string {
	if num == 0 || den == 0 {
		return ""
	}
	if num < den {
		return utils.ToString(num) + "/" + utils.ToString(den)
	}
	secs := float64(num) / float64(den)
	return strings.TrimRight(strings.TrimRight(utils.ToString(secs), "0"), ".") + "s"
}

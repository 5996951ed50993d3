package gamma

import "github.com/pngkit/pngkit/raster"

// Summary accumulates the worst output-unit error seen across runs, bucketed
// by colour class and bit depth for end-of-run reporting.
type Summary struct {
	Gray2   float64
	Gray4   float64
	Gray8   float64
	Gray16  float64
	Color8  float64
	Color16 float64
}

// Record folds one run's maximum output error into the matching bucket.
// 1-bit greyscale and palette runs have no bucket and are ignored.
func (s *Summary) Record(ct raster.ColourType, bitDepth uint8, maxErrOut float64) {
	var slot *float64
	switch ct {
	case raster.Gray, raster.GrayAlpha:
		switch bitDepth {
		case 2:
			slot = &s.Gray2
		case 4:
			slot = &s.Gray4
		case 8:
			slot = &s.Gray8
		case 16:
			slot = &s.Gray16
		}
	case raster.RGB, raster.RGBA:
		switch bitDepth {
		case 8:
			slot = &s.Color8
		case 16:
			slot = &s.Color16
		}
	}
	if slot != nil && maxErrOut > *slot {
		*slot = maxErrOut
	}
}

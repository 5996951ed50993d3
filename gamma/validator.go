// Package gamma checks gamma-corrected codec output against the exact
// transform computed in floating point.
//
// For every decoded sample the validator knows the exact input sample, so it
// can compute the theoretical gamma-corrected value to double precision and
// accept the decoded value only within a tolerance window. Three error axes
// are tracked: absolute error in linear light, percentage error in linear
// light (suppressed where quantization dominates), and error in encoded
// output units, which always includes the ±0.5 quantization allowance.
package gamma

import (
	"fmt"
	"math"

	"github.com/pngkit/pngkit/raster"
)

// Config fixes one validation run: the format on both sides of the codec and
// the gamma model applied between them.
type Config struct {
	InColour  raster.ColourType
	InDepth   uint8
	OutColour raster.ColourType
	OutDepth  uint8

	FileGamma   float64 // gamma the stream declares
	ScreenGamma float64 // gamma the codec was asked to correct to

	// SBit is the declared significant bits per sample. Samples are assumed
	// scaled per the sample depth scaling rules, so only the top SBit bits
	// of an input sample carry information.
	SBit uint8

	// ThresholdTest marks a run whose gamma product is close enough to 1
	// that the codec must not transform samples at all.
	ThresholdTest bool

	// UseInputPrecision enables the secondary acceptance window: when the
	// primary check fails, the input is re-assumed to be known only to ±0.5
	// units at SBit precision and the widened window is tried before
	// declaring failure.
	UseInputPrecision bool

	Tolerances Tolerances
}

// Validator checks decoded samples for one run and tracks running error
// maxima.
type Validator struct {
	cfg Config

	outMax float64
	maxAbs float64
	maxPC  float64
	maxOut float64
	power  float64 // overall gamma, 1/(file*screen)

	maxErrOut float64
	maxErrAbs float64
	maxErrPC  float64
}

// NewValidator derives the per-run constants from cfg.
func NewValidator(cfg Config) *Validator {
	return &Validator{
		cfg:    cfg,
		outMax: float64(uint(1)<<cfg.OutDepth - 1),
		maxAbs: cfg.Tolerances.AbsErr(cfg.OutDepth),
		maxPC:  cfg.Tolerances.PCErr(cfg.OutDepth),
		maxOut: cfg.Tolerances.OutErr(cfg.OutDepth),
		power:  1 / (cfg.FileGamma * cfg.ScreenGamma),
	}
}

// Processing reports whether the codec is expected to change sample values
// at all on this run. Below the gamma threshold, and for palette images, the
// decoded rows must be byte-identical to the reference rows instead of
// numerically close.
func (v *Validator) Processing() bool {
	if v.cfg.InDepth != v.cfg.OutDepth {
		return true
	}
	return math.Abs(v.cfg.ScreenGamma*v.cfg.FileGamma-1) >= Threshold &&
		!v.cfg.ThresholdTest && v.cfg.InColour != raster.Palette
}

// SamplesPerPixel returns how many samples of each output pixel are checked.
// Alpha is never gamma corrected, so only the colour channels count.
func (v *Validator) SamplesPerPixel() uint32 {
	if v.cfg.OutColour&2 != 0 {
		return 3
	}
	return 1
}

// ValidateSample checks one decoded sample against the exact input sample.
// Error maxima are updated whether or not the sample is accepted.
func (v *Validator) ValidateSample(in, out uint) error {
	isbit := in >> (v.cfg.InDepth - v.cfg.SBit)

	// The exact input intensity, trusting the top sbit bits only.
	i := float64(isbit) / float64(uint(1)<<v.cfg.SBit-1)

	// The perfect result, computed to double precision. Anything within the
	// output quantization of it is trivially fine.
	encodedSample := math.Pow(i, v.power) * v.outMax
	od := float64(out)
	encodedError := math.Abs(od - encodedSample)

	if encodedError > v.maxErrOut {
		v.maxErrOut = encodedError
	}
	if encodedError < .5+v.maxOut {
		return nil
	}

	// Possible error: move to linear light space. The decoded sample is
	// decoded through the screen gamma, the input through the file gamma.
	sample := math.Pow(i, 1/v.cfg.FileGamma)
	output := math.Pow(od/v.outMax, v.cfg.ScreenGamma)

	errAbs := math.Abs(sample - output)
	if errAbs > v.maxErrAbs {
		v.maxErrAbs = errAbs
	}

	// Quantization dominates percentage errors for small samples; only
	// record the percentage where the limit is meaningfully testable.
	if sample*v.maxPC > .5+v.maxAbs {
		if pc := errAbs / sample; pc > v.maxErrPC {
			v.maxErrPC = pc
		}
	}

	// Digitization limits for encodedSample. maxOut is in encoded space;
	// maxPC and maxAbs widen the window in linear light first.
	tmp := sample * v.maxPC
	if tmp < v.maxAbs {
		tmp = v.maxAbs
	}

	esLo := encodedSample - v.maxOut
	if esLo > 0 && sample-tmp > 0 {
		if l := v.outMax * math.Pow(sample-tmp, 1/v.cfg.ScreenGamma); l < esLo {
			esLo = l
		}
	} else {
		esLo = 0
	}

	esHi := encodedSample + v.maxOut
	if esHi < v.outMax && sample+tmp < 1 {
		if h := v.outMax * math.Pow(sample+tmp, 1/v.cfg.ScreenGamma); h > esHi {
			esHi = h
		}
	} else {
		esHi = v.outMax
	}

	// Primary test: the decoded value, quantization included, must land
	// inside the window.
	if !(od+.5 < esLo || od-.5 > esHi) {
		return nil
	}

	isLo, isHi := esLo, esHi
	if v.cfg.UseInputPrecision {
		// Secondary test: assume the input value was only known to ±0.5
		// units at sbit precision and recompute the window. Quite a wide
		// range when sbit is low.
		den := float64(uint(1)<<v.cfg.SBit - 1)

		if t := (float64(isbit) - .5) / den; t > 0 {
			isLo = v.outMax*math.Pow(t, v.power) - v.maxOut
			if isLo < 0 {
				isLo = 0
			}
		} else {
			isLo = 0
		}

		if t := (float64(isbit) + .5) / den; t < 1 {
			isHi = v.outMax*math.Pow(t, v.power) + v.maxOut
			if isHi > v.outMax {
				isHi = v.outMax
			}
		} else {
			isHi = v.outMax
		}

		if !(od+.5 < isLo || od-.5 > isHi) {
			return nil
		}
	}

	return fmt.Errorf("error: %.3f; %d{%d;%d} -> %d not %.2f (%.1f-%.1f): %w",
		od-encodedSample, in, v.cfg.SBit, isbit, out, encodedSample,
		isLo, isHi, ErrOutOfWindow)
}

// ValidateRow checks every colour sample of a decoded row against the
// reference row, reporting each rejected sample through report (which may be
// nil) and updating the error maxima throughout.
func (v *Validator) ValidateRow(ref, decoded []byte, report func(error)) {
	per := v.SamplesPerPixel()
	for x := uint32(0); x < raster.Width; x++ {
		for s := uint32(0); s < per; s++ {
			in := raster.Sample(ref, v.cfg.InColour, v.cfg.InDepth, x, s)
			out := raster.Sample(decoded, v.cfg.OutColour, v.cfg.OutDepth, x, s)
			if err := v.ValidateSample(in, out); err != nil && report != nil {
				report(err)
			}
		}
	}
}

// MaxErrors returns the running maxima: output units, absolute linear light,
// percentage (as a fraction).
func (v *Validator) MaxErrors() (out, abs, pc float64) {
	return v.maxErrOut, v.maxErrAbs, v.maxErrPC
}

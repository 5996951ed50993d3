package gamma

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pngkit/pngkit/raster"
)

func gray8Config(fileGamma, screenGamma float64) Config {
	return Config{
		InColour:    raster.Gray,
		InDepth:     8,
		OutColour:   raster.Gray,
		OutDepth:    8,
		FileGamma:   fileGamma,
		ScreenGamma: screenGamma,
		SBit:        8,
		Tolerances:  DefaultTolerances(),
	}
}

// File gamma 1/2.2 corrected to a 2.2 screen is a net identity: every 8-bit
// sample must decode to itself.
func TestIdentityTransform(t *testing.T) {
	v := NewValidator(gray8Config(1/2.2, 2.2))
	for s := uint(0); s < 256; s++ {
		require.NoError(t, v.ValidateSample(s, s), "sample %d", s)
	}
	out, abs, pc := v.MaxErrors()
	assert.Less(t, out, .5+DefaultTolerances().MaxOut8)
	assert.Zero(t, abs)
	assert.Zero(t, pc)
}

// A correctly rounded gamma transform passes for every sample.
func TestExactTransformAccepted(t *testing.T) {
	const fileGamma, screenGamma = 1 / 2.2, 1.0
	v := NewValidator(gray8Config(fileGamma, screenGamma))
	power := 1 / (fileGamma * screenGamma)
	for s := uint(0); s < 256; s++ {
		want := math.Pow(float64(s)/255, power) * 255
		require.NoError(t, v.ValidateSample(s, uint(math.Floor(want+.5))), "sample %d", s)
	}
}

func TestGrosslyWrongSampleRejected(t *testing.T) {
	v := NewValidator(gray8Config(1.0, 2.2))
	err := v.ValidateSample(200, 10)
	require.ErrorIs(t, err, ErrOutOfWindow)

	vip := NewValidator(func() Config {
		c := gray8Config(1.0, 2.2)
		c.UseInputPrecision = true
		return c
	}())
	assert.ErrorIs(t, vip.ValidateSample(200, 10), ErrOutOfWindow,
		"input precision must not excuse a gross error")

	out, abs, _ := v.MaxErrors()
	assert.Greater(t, out, 200.0)
	assert.Greater(t, abs, 0.0)
}

// With sbit precision the input is only known to ±0.5 units at 5 bits; a
// decode computed from a slightly skewed input fails the exact-input window
// but must be accepted when input-precision relaxation is on.
func TestInputPrecisionWindow(t *testing.T) {
	cfg := gray8Config(1/2.2, 1.0)
	cfg.SBit = 5
	in, out := uint(32), uint(4)

	strict := NewValidator(cfg)
	require.ErrorIs(t, strict.ValidateSample(in, out), ErrOutOfWindow)

	cfg.UseInputPrecision = true
	relaxed := NewValidator(cfg)
	assert.NoError(t, relaxed.ValidateSample(in, out))
}

// Percentage error is not recorded where output quantization dominates.
func TestPercentageSuppressionForSmallSamples(t *testing.T) {
	v := NewValidator(gray8Config(1.0, 2.2))
	// Sample 1 is tiny in linear light: sample*maxpc is far below .5.
	_ = v.ValidateSample(1, 30)
	_, _, pc := v.MaxErrors()
	assert.Zero(t, pc)
}

func TestProcessingPredicate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
		want bool
	}{
		{"identity product", func(c *Config) { c.FileGamma, c.ScreenGamma = 1 / 2.2, 2.2 }, false},
		{"below threshold", func(c *Config) { c.FileGamma, c.ScreenGamma = 1, 1.001 }, false},
		{"real transform", func(c *Config) { c.FileGamma, c.ScreenGamma = 1, 1.5 }, true},
		{"threshold test flag", func(c *Config) {
			c.FileGamma, c.ScreenGamma = 1, 1.5
			c.ThresholdTest = true
		}, false},
		{"palette untouched", func(c *Config) {
			c.FileGamma, c.ScreenGamma = 1, 1.5
			c.InColour, c.OutColour = raster.Palette, raster.Palette
		}, false},
		{"depth change forces processing", func(c *Config) {
			c.FileGamma, c.ScreenGamma = 1, 1.001
			c.InDepth, c.OutDepth = 16, 8
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := gray8Config(1, 1)
			tt.mut(&cfg)
			assert.Equal(t, tt.want, NewValidator(cfg).Processing())
		})
	}
}

func TestValidateRowIdentity(t *testing.T) {
	v := NewValidator(gray8Config(1/2.2, 2.2))

	row := make([]byte, raster.MaxRowSize)
	require.NoError(t, raster.Row(row, raster.Gray, 8, 0))

	var reports []error
	v.ValidateRow(row, row, func(err error) { reports = append(reports, err) })
	assert.Empty(t, reports)
}

func TestSamplesPerPixel(t *testing.T) {
	mk := func(out raster.ColourType) *Validator {
		c := gray8Config(1, 1.5)
		c.OutColour = out
		return NewValidator(c)
	}
	assert.Equal(t, uint32(1), mk(raster.Gray).SamplesPerPixel())
	assert.Equal(t, uint32(1), mk(raster.GrayAlpha).SamplesPerPixel())
	assert.Equal(t, uint32(3), mk(raster.RGB).SamplesPerPixel())
	assert.Equal(t, uint32(3), mk(raster.RGBA).SamplesPerPixel())
}

func TestToleranceTables(t *testing.T) {
	d := DefaultTolerances()
	assert.InDelta(t, .23182, d.OutErr(2), 1e-9)
	assert.InDelta(t, .40644, d.OutErr(4), 1e-9)
	assert.Equal(t, .1, d.OutErr(8))
	assert.Equal(t, .499, d.OutErr(16))
	assert.Equal(t, .00005, d.AbsErr(8))
	assert.Equal(t, .00005, d.AbsErr(16))
	assert.InDelta(t, .00499, d.PCErr(8), 1e-12)
	assert.InDelta(t, .00005, d.PCErr(16), 1e-12)
}

func TestSummaryBuckets(t *testing.T) {
	var s Summary
	s.Record(raster.Gray, 2, .2)
	s.Record(raster.Gray, 2, .1) // not a new maximum
	s.Record(raster.GrayAlpha, 16, .3)
	s.Record(raster.RGB, 8, .15)
	s.Record(raster.RGBA, 16, .4)
	s.Record(raster.Gray, 1, 9)    // no bucket
	s.Record(raster.Palette, 8, 9) // no bucket

	assert.Equal(t, .2, s.Gray2)
	assert.Zero(t, s.Gray4)
	assert.Zero(t, s.Gray8)
	assert.Equal(t, .3, s.Gray16)
	assert.Equal(t, .15, s.Color8)
	assert.Equal(t, .4, s.Color16)
}

package harness

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pngkit/pngkit/codec"
	"github.com/pngkit/pngkit/gamma"
	"github.com/pngkit/pngkit/internal/pngtest"
	"github.com/pngkit/pngkit/pool"
	"github.com/pngkit/pngkit/raster"
	"github.com/pngkit/pngkit/store"
)

func newTestCtx(t *testing.T) (*store.Store, *Recorder, *pool.Pool, *pool.Pool) {
	t.Helper()
	marks := pool.NewMarkSource()
	s := store.New()
	t.Cleanup(s.Close)
	return s, NewRecorder(nil, false), pool.New("read", marks), pool.New("write", marks)
}

func TestMakeStandardImages(t *testing.T) {
	s, rec, _, wpool := newTestCtx(t)
	MakeStandardImages(s, pngtest.Codec{}, rec, wpool)

	require.Zero(t, rec.Errors(), "message: %s", rec.Message())
	require.Zero(t, rec.Warnings(), "message: %s", rec.Message())

	// Fifteen (colour type, bit depth) pairs, both transmission orders.
	assert.Equal(t, 30, s.Files())

	// Every image is retrievable under its ID.
	var ct raster.ColourType
	var bd uint8
	for raster.NextFormat(&ct, &bd) {
		for _, il := range []raster.Interlace{raster.InterlaceNone, raster.InterlaceAdam7} {
			f, err := s.Lookup(raster.MakeFormatID(ct, bd, il))
			require.NoError(t, err)
			assert.Positive(t, f.Size())
		}
	}

	// The write path must have given every allocation back.
	assert.Zero(t, wpool.Reset(func(err error) { t.Error(err) }))
}

func TestStandardImagesDeterministic(t *testing.T) {
	s1, rec1, _, wpool1 := newTestCtx(t)
	s2, rec2, _, wpool2 := newTestCtx(t)
	MakeStandardImages(s1, pngtest.Codec{}, rec1, wpool1)
	MakeStandardImages(s2, pngtest.Codec{}, rec2, wpool2)
	require.Zero(t, rec1.Errors())
	require.Zero(t, rec2.Errors())

	// Two independent runs produce byte-identical streams.
	var ct raster.ColourType
	var bd uint8
	for raster.NextFormat(&ct, &bd) {
		for _, il := range []raster.Interlace{raster.InterlaceNone, raster.InterlaceAdam7} {
			id := raster.MakeFormatID(ct, bd, il)
			f1, err := s1.Lookup(id)
			require.NoError(t, err)
			f2, err := s2.Lookup(id)
			require.NoError(t, err)
			assert.Equal(t, f1.Digest(), f2.Digest(), "format %s", id.Name())
		}
	}
}

func TestStandardRoundTrip(t *testing.T) {
	s, rec, rpool, wpool := newTestCtx(t)
	MakeStandardImages(s, pngtest.Codec{}, rec, wpool)
	require.Zero(t, rec.Errors())

	StandardTest(s, pngtest.Codec{}, rec, rpool, NewNoise(0))
	assert.Zero(t, rec.Errors(), "message: %s", rec.Message())
	assert.Zero(t, rec.Warnings(), "message: %s", rec.Message())

	assert.Zero(t, rpool.Reset(func(err error) { t.Error(err) }))
}

func TestErrorTestPasses(t *testing.T) {
	_, rec, _, _ := newTestCtx(t)
	ErrorTest(pngtest.Codec{}, rec)
	assert.Zero(t, rec.Errors(), "message: %s", rec.Message())
	assert.Zero(t, rec.Warnings(), "message: %s", rec.Message())
}

func newGammaCtx(t *testing.T, progressive bool) (*gammaCtx, *Recorder) {
	t.Helper()
	s, rec, rpool, wpool := newTestCtx(t)
	MakeStandardImages(s, pngtest.Codec{}, rec, wpool)
	require.Zero(t, rec.Errors())
	return &gammaCtx{
		store:       s,
		codec:       pngtest.Codec{},
		rec:         rec,
		rpool:       rpool,
		noise:       NewNoise(0),
		tolerances:  gamma.DefaultTolerances(),
		gammas:      gammaValues[:2],
		summary:     &gamma.Summary{},
		progressive: progressive,
	}, rec
}

func TestGammaTransformRun(t *testing.T) {
	g, rec := newGammaCtx(t, false)
	g.run(gammaRun{ct: raster.Gray, bd: 8, il: raster.InterlaceNone,
		fileGamma: 1 / 2.2, screenGamma: 1.0})
	assert.Zero(t, rec.Errors(), "message: %s", rec.Message())
	assert.Positive(t, g.summary.Gray8)
	assert.Less(t, g.summary.Gray8, 0.5+gamma.DefaultTolerances().MaxOut8)
}

func TestGammaTransformLowDepth(t *testing.T) {
	g, rec := newGammaCtx(t, false)
	for _, bd := range []uint8{1, 2, 4} {
		g.run(gammaRun{ct: raster.Gray, bd: bd, il: raster.InterlaceNone,
			fileGamma: 1 / 2.2, screenGamma: 1.0})
	}
	assert.Zero(t, rec.Errors(), "message: %s", rec.Message())
}

func TestGammaThresholdRun(t *testing.T) {
	g, rec := newGammaCtx(t, false)
	for _, ct := range []raster.ColourType{raster.Gray, raster.Palette} {
		g.run(gammaRun{ct: ct, bd: 8, il: raster.InterlaceNone,
			fileGamma: .95, screenGamma: 1 / .95, thresholdTest: true})
	}
	assert.Zero(t, rec.Errors(), "message: %s", rec.Message())
}

func TestGammaSBitRun(t *testing.T) {
	g, rec := newGammaCtx(t, false)
	g.run(gammaRun{ct: raster.RGB, bd: 16, il: raster.InterlaceNone,
		fileGamma: 1 / 2.2, screenGamma: 1.0, sbit: 10})
	assert.Zero(t, rec.Errors(), "message: %s", rec.Message())
	assert.Positive(t, g.summary.Color16)
}

func TestGammaStripRun(t *testing.T) {
	g, rec := newGammaCtx(t, false)
	g.run(gammaRun{ct: raster.Gray, bd: 16, il: raster.InterlaceNone,
		fileGamma: 1 / 2.2, screenGamma: 1.0,
		sbit: maxGammaBits, strip16: true, useInputPrecision: true})
	assert.Zero(t, rec.Errors(), "message: %s", rec.Message())
	assert.Positive(t, g.summary.Gray8)
}

func TestGammaProgressiveRun(t *testing.T) {
	g, rec := newGammaCtx(t, true)
	g.run(gammaRun{ct: raster.RGBA, bd: 8, il: raster.InterlaceNone,
		fileGamma: 1 / 1.8, screenGamma: 2.2})
	assert.Zero(t, rec.Errors(), "message: %s", rec.Message())
	assert.Positive(t, g.summary.Color8)
}

func TestGammaInterlacedRun(t *testing.T) {
	g, rec := newGammaCtx(t, false)
	g.run(gammaRun{ct: raster.Gray, bd: 8, il: raster.InterlaceAdam7,
		fileGamma: 1 / 2.2, screenGamma: 1.0})
	assert.Zero(t, rec.Errors(), "message: %s", rec.Message())
}

func TestRunnerFullSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("full suite is slow")
	}
	touch := filepath.Join(t.TempDir(), "success")
	var out bytes.Buffer
	r := NewRunner(pngtest.Codec{}, Options{
		NGammas: 2,
		SBitLow: 14,
		Touch:   touch,
		Output:  &out,
	})
	require.NoError(t, r.Run(), "message: %s", r.Recorder().Message())

	_, err := os.Stat(touch)
	assert.NoError(t, err, "touch file missing after success")

	assert.Contains(t, out.String(), "gamma transform error summary")
	assert.Contains(t, out.String(), "allocated memory statistics")
}

// rejectingCodec fails every metadata declaration; the runner must fail the
// run and withhold the touch file.
type rejectingCodec struct{}

type rejectingWriter struct{}

func (rejectingWriter) SetMetadata(codec.Metadata) error { return errors.New("no") }
func (rejectingWriter) WriteRow([]byte) error            { return errors.New("no") }
func (rejectingWriter) Finalize() error                  { return errors.New("no") }

func (rejectingCodec) NewWriter(io.Writer, codec.Handler) codec.Writer {
	return rejectingWriter{}
}

func (rejectingCodec) NewReader(r io.Reader, h codec.Handler, _ codec.ReadOptions) codec.Reader {
	return pngtest.Codec{}.NewReader(r, h, codec.ReadOptions{})
}

func (rejectingCodec) NewIncremental(cb codec.Callbacks, h codec.Handler, _ codec.ReadOptions) codec.Incremental {
	return pngtest.Codec{}.NewIncremental(cb, h, codec.ReadOptions{})
}

func TestRunnerReportsFailure(t *testing.T) {
	touch := filepath.Join(t.TempDir(), "success")
	var out bytes.Buffer
	r := NewRunner(rejectingCodec{}, Options{Touch: touch, Output: &out, Log: true})
	err := r.Run()
	require.ErrorIs(t, err, ErrFailed)
	assert.Positive(t, r.Recorder().Errors())

	_, statErr := os.Stat(touch)
	assert.True(t, os.IsNotExist(statErr), "touch file written despite failure")

	assert.Contains(t, out.String(), "first failure")
}

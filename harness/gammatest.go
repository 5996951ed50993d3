package harness

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/pngkit/pngkit/codec"
	"github.com/pngkit/pngkit/gamma"
	"github.com/pngkit/pngkit/modifier"
	"github.com/pngkit/pngkit/pool"
	"github.com/pngkit/pngkit/raster"
	"github.com/pngkit/pngkit/store"
)

// maxGammaBits caps the significant bits claimed for a 16-to-8 bit gamma
// run, matching the precision the strip path actually preserves.
const maxGammaBits = 11

// reportLimit bounds the per-run sample failures sent to the recorder; the
// error maxima keep updating past it.
const reportLimit = 4

// gammaRun describes one pass of a stored image through the modifier and a
// gamma-correcting read.
type gammaRun struct {
	ct raster.ColourType
	bd uint8
	il raster.Interlace

	fileGamma   float64
	screenGamma float64

	// sbit, when in (0, bd), installs an sBIT rewrite and narrows the
	// validator's input precision. Zero means full precision.
	sbit uint8

	thresholdTest     bool
	useInputPrecision bool
	strip16           bool
}

func (r *gammaRun) name() string {
	n := "gamma " + strconv.FormatFloat(r.fileGamma, 'g', 5, 64) +
		"->" + strconv.FormatFloat(r.screenGamma, 'g', 5, 64) +
		" " + raster.MakeFormatID(r.ct, r.bd, r.il).Name()
	if r.sbit > 0 && r.sbit < r.bd {
		n += " sbit " + strconv.Itoa(int(r.sbit))
	}
	if r.strip16 {
		n += " 16-to-8"
	}
	return n
}

// gammaCtx carries the collaborators every gamma run needs.
type gammaCtx struct {
	store *store.Store
	codec codec.Codec
	rec   *Recorder
	rpool *pool.Pool
	noise *Noise

	tolerances  gamma.Tolerances
	gammas      []float64
	summary     *gamma.Summary
	progressive bool
	speed       bool
}

// runGamma streams one stored image through the modifier with gamma, sRGB
// and optional sBIT modifications installed, decodes the result with gamma
// correction requested, and validates every colour sample.
func (g *gammaCtx) runGamma(run gammaRun) error {
	id := raster.MakeFormatID(run.ct, run.bd, run.il)
	g.rec.Begin(run.name())

	if _, err := g.store.OpenForRead(id); err != nil {
		return err
	}
	defer g.store.CloseRead()

	m, err := modifier.New(g.store)
	if err != nil {
		return err
	}
	m.Register(modifier.NewGammaModification(run.fileGamma))
	m.Register(modifier.NewSRGBModification(127)) // drop any sRGB chunk
	if run.sbit > 0 && run.sbit < run.bd {
		m.Register(modifier.NewSBitModification(run.sbit))
	}

	opts := codec.ReadOptions{ScreenGamma: run.screenGamma, Strip16: run.strip16}

	outDepth := run.bd
	if run.strip16 && run.bd == 16 {
		outDepth = 8
	}
	sbit := run.sbit
	if sbit == 0 || sbit > run.bd {
		sbit = run.bd
	}

	cfg := gamma.Config{
		InColour:          run.ct,
		InDepth:           run.bd,
		OutColour:         run.ct,
		OutDepth:          outDepth,
		FileGamma:         run.fileGamma,
		ScreenGamma:       run.screenGamma,
		SBit:              sbit,
		ThresholdTest:     run.thresholdTest,
		UseInputPrecision: run.useInputPrecision,
		Tolerances:        g.tolerances,
	}

	rowSize, err := raster.RowSize(run.ct, run.bd)
	if err != nil {
		return err
	}
	outRowSize := rowSize
	if outDepth != run.bd {
		outRowSize = rowSize / 2
	}
	ref := make([]byte, rowSize)

	var v *gamma.Validator
	reported := 0
	validate := func(y uint32, row []byte) error {
		if g.speed {
			return nil
		}
		if err := raster.Row(ref, run.ct, run.bd, y); err != nil {
			return err
		}
		if v.Processing() {
			v.ValidateRow(ref, row, func(err error) {
				if reported < reportLimit {
					g.rec.Errorf("row %d: %v", y, err)
				}
				reported++
			})
		} else if !bytes.Equal(row, ref[:len(row)]) {
			if reported < reportLimit {
				g.rec.Errorf("row %d changed below the gamma threshold", y)
			}
			reported++
		}
		return nil
	}

	_, err = g.readModified(m, opts, outRowSize, func(md codec.Metadata) error {
		// The modifier writes the gamma in 1/100000 units; the decoded
		// value must round-trip to within half a unit.
		if math.Abs(md.FileGamma-run.fileGamma) > 1e-5 {
			g.rec.Errorf("file gamma %v, want %v", md.FileGamma, run.fileGamma)
		}
		// Validate against the quantized gamma the codec actually saw.
		cfg.FileGamma = md.FileGamma
		v = gamma.NewValidator(cfg)
		return nil
	}, validate)
	if err != nil {
		return err
	}

	if !g.speed {
		out, _, _ := v.MaxErrors()
		g.summary.Record(run.ct, outDepth, out)
	}
	return nil
}

// readModified decodes the modifier's output stream in the configured read
// mode, invoking info once metadata is known and rowFn for every row.
func (g *gammaCtx) readModified(src io.Reader, opts codec.ReadOptions, outRowSize int,
	info func(codec.Metadata) error, rowFn func(y uint32, row []byte) error) (codec.Metadata, error) {

	if g.progressive {
		var md codec.Metadata
		inc := g.codec.NewIncremental(codec.Callbacks{
			Info: func(m codec.Metadata) error {
				md = m
				return info(m)
			},
			Row: func(row []byte, y uint32, pass int) error {
				return rowFn(y, row)
			},
		}, g.rec, opts)

		buf := make([]byte, 511)
		for {
			n := g.noise.Next()
			read, err := io.ReadFull(src, buf[:n])
			if read > 0 {
				if perr := inc.Push(buf[:read]); perr != nil {
					return md, perr
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return md, nil
			}
			if err != nil {
				return md, err
			}
		}
	}

	r := g.codec.NewReader(src, g.rec, opts)
	md, err := r.ReadInfo()
	if err != nil {
		return md, err
	}
	if err := info(md); err != nil {
		return md, err
	}

	rowAlloc, err := g.rpool.Allocate(outRowSize)
	if err != nil {
		return md, err
	}
	defer g.rpool.Free(rowAlloc)
	row := rowAlloc.Bytes()

	for y := uint32(0); y < md.Height; y++ {
		if err := r.ReadRow(row, nil); err != nil {
			return md, fmt.Errorf("row %d: %w", y, err)
		}
		if err := rowFn(y, row); err != nil {
			return md, err
		}
	}
	return md, r.ReadEnd()
}

// GammaThresholdTests checks that gamma products close enough to 1 leave
// every format untouched, sweeping file gammas down from 1.0 paired with
// their reciprocals, plus the sRGB 0.45455/2.2 pair.
func (g *gammaCtx) GammaThresholdTests(il raster.Interlace) {
	var ct raster.ColourType
	var bd uint8
	for raster.NextFormat(&ct, &bd) {
		for fg := 1.0; fg >= .4; fg *= .95 {
			g.run(gammaRun{ct: ct, bd: bd, il: il,
				fileGamma: fg, screenGamma: 1 / fg, thresholdTest: true})
		}
		g.run(gammaRun{ct: ct, bd: bd, il: il,
			fileGamma: .45455, screenGamma: 2.2, thresholdTest: true})
	}
}

// GammaTransformTests sweeps the gamma matrix over every direct-colour
// format: each ordered (i, j) pair encodes with 1/gammas[i] and decodes to
// screen gamma gammas[j].
func (g *gammaCtx) GammaTransformTests(il raster.Interlace) {
	var ct raster.ColourType
	var bd uint8
	for raster.NextFormat(&ct, &bd) {
		if ct == raster.Palette {
			continue
		}
		for i, fg := range g.gammas {
			for j, sg := range g.gammas {
				if i == j {
					continue
				}
				g.run(gammaRun{ct: ct, bd: bd, il: il,
					fileGamma: 1 / fg, screenGamma: sg})
			}
		}
	}
}

// GammaSBitTests reruns the transform matrix with reduced significant bits,
// for greyscale and truecolour at the depths that can spare bits.
func (g *gammaCtx) GammaSBitTests(il raster.Interlace, sbitLow uint8) {
	for sbit := sbitLow; sbit < 16; sbit++ {
		for _, ct := range []raster.ColourType{raster.Gray, raster.RGB} {
			for _, bd := range []uint8{8, 16} {
				if sbit >= bd {
					continue
				}
				for i, fg := range g.gammas {
					for j, sg := range g.gammas {
						if i == j {
							continue
						}
						g.run(gammaRun{ct: ct, bd: bd, il: il,
							fileGamma: 1 / fg, screenGamma: sg, sbit: sbit})
					}
				}
			}
		}
	}
}

// GammaStripTests gamma corrects the 16-bit formats while reducing them to
// 8 bits on read. Pairs whose product sits below the gamma threshold are
// skipped: the codec would strip without correcting and the two effects
// cannot be told apart at 8 bits.
func (g *gammaCtx) GammaStripTests(il raster.Interlace, useInputPrecision bool) {
	types := []raster.ColourType{raster.Gray, raster.GrayAlpha, raster.RGB, raster.RGBA}
	for _, ct := range types {
		for i, fg := range g.gammas {
			for j, sg := range g.gammas {
				if i == j {
					continue
				}
				if math.Abs(sg/fg-1) < gamma.Threshold {
					continue
				}
				g.run(gammaRun{ct: ct, bd: 16, il: il,
					fileGamma: 1 / fg, screenGamma: sg,
					sbit: maxGammaBits, strip16: true,
					useInputPrecision: useInputPrecision})
			}
		}
	}
}

func (g *gammaCtx) run(r gammaRun) {
	if err := g.runGamma(r); err != nil {
		g.rec.Errorf("%v", err)
	}
}

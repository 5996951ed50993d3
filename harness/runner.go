package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pngkit/pngkit/codec"
	"github.com/pngkit/pngkit/gamma"
	"github.com/pngkit/pngkit/pool"
	"github.com/pngkit/pngkit/raster"
	"github.com/pngkit/pngkit/store"
)

// ErrFailed reports that a run recorded errors, or warnings while warnings
// are promoted.
var ErrFailed = errors.New("harness: test failures")

// gammaValues is the full gamma sweep; a run uses the first NGammas of it.
var gammaValues = []float64{2.2, 1.0, 2.2 / 1.45, 1.8, 1.5, 2.4, 2.5, 2.62, 2.9}

// DefaultNGammas is the matrix width used when Options.NGammas is zero.
const DefaultNGammas = 3

// AllGammas selects the full sweep.
var AllGammas = len(gammaValues)

// DefaultSBitLow is the smallest significant-bit count swept by the sBIT
// gamma family when Options.SBitLow is zero.
const DefaultSBitLow = 8

// Options configures a Runner. The zero value runs the default suite:
// three gammas, warnings promoted, input-precision relaxation for the
// 16-to-8 bit runs.
type Options struct {
	Verbose bool // log every test and diagnostic
	Log     bool // keep going after failures instead of stopping the run
	Quiet   bool // suppress the summary output

	Speed       bool // decode everything but skip sample validation
	NoGamma     bool // skip the gamma families entirely
	Progressive bool // read through the push interface
	Interlace   bool // run the gamma families on the interlaced images

	NGammas int   // gamma matrix width, 1..len(gammaValues)
	SBitLow uint8 // lowest significant-bit count for the sBIT family

	// NoInputPrecision16To8 disables the input-precision relaxation the
	// 16-to-8 bit strip family uses by default.
	NoInputPrecision16To8 bool

	// NoWarningPromotion leaves warnings advisory instead of failing the
	// run on them.
	NoWarningPromotion bool

	// Touch names a file created (empty) when the run succeeds, for
	// build systems that track success by timestamp.
	Touch string

	Tolerances gamma.Tolerances
	Logger     *slog.Logger
	Output     io.Writer // summary destination; nil discards
}

// Runner owns the store, the pools and the recorder for one complete run
// over a codec.
type Runner struct {
	opts  Options
	codec codec.Codec

	store   *store.Store
	rec     *Recorder
	rpool   *pool.Pool
	wpool   *pool.Pool
	noise   *Noise
	summary gamma.Summary
	out     io.Writer
	gammas  []float64
}

// NewRunner builds a runner for the codec under test.
func NewRunner(c codec.Codec, opts Options) *Runner {
	if opts.NGammas <= 0 || opts.NGammas > len(gammaValues) {
		opts.NGammas = DefaultNGammas
	}
	if opts.SBitLow == 0 {
		opts.SBitLow = DefaultSBitLow
	}
	if opts.Tolerances == (gamma.Tolerances{}) {
		opts.Tolerances = gamma.DefaultTolerances()
	}
	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	rec := NewRecorder(opts.Logger, opts.Verbose)
	rec.PromoteWarnings = !opts.NoWarningPromotion

	marks := pool.NewMarkSource()
	return &Runner{
		opts:   opts,
		codec:  c,
		store:  store.New(),
		rec:    rec,
		rpool:  pool.New("read", marks),
		wpool:  pool.New("write", marks),
		noise:  NewNoise(0),
		out:    out,
		gammas: gammaValues[:opts.NGammas],
	}
}

// Recorder exposes the run's recorder, mainly for the final report.
func (r *Runner) Recorder() *Recorder { return r.rec }

// abort reports whether the run should stop at a phase boundary: any
// failure so far, unless the run was asked to log and keep going.
func (r *Runner) abort() bool {
	return r.rec.Failed() && !r.opts.Log && !r.opts.Verbose
}

// Run executes the whole suite and returns ErrFailed if anything was
// recorded. The touch file, if configured, is written only on success.
func (r *Runner) Run() error {
	defer r.store.Close()

	MakeStandardImages(r.store, r.codec, r.rec, r.wpool)
	if !r.abort() {
		StandardTest(r.store, r.codec, r.rec, r.rpool, r.noise)
	}
	if !r.abort() {
		ErrorTest(r.codec, r.rec)
	}

	if !r.opts.NoGamma && !r.abort() {
		g := &gammaCtx{
			store:       r.store,
			codec:       r.codec,
			rec:         r.rec,
			rpool:       r.rpool,
			noise:       r.noise,
			tolerances:  r.opts.Tolerances,
			gammas:      r.gammas,
			summary:     &r.summary,
			progressive: r.opts.Progressive,
			speed:       r.opts.Speed,
		}
		il := raster.InterlaceNone
		if r.opts.Interlace {
			il = raster.InterlaceAdam7
		}

		g.GammaThresholdTests(il)
		r.summary = gamma.Summary{} // threshold runs validate nothing

		if !r.abort() {
			g.GammaTransformTests(il)
			r.reportSummary("gamma transform")
		}
		if !r.abort() {
			g.GammaSBitTests(il, r.opts.SBitLow)
			r.reportSummary("gamma with significant bits")
		}
		if !r.abort() {
			g.GammaStripTests(il, !r.opts.NoInputPrecision16To8)
			r.reportSummary("gamma 16-to-8 bit")
		}
	}

	leak := func(err error) { r.rec.Errorf("%v", err) }
	r.rpool.Reset(leak)
	r.wpool.Reset(leak)
	r.reportPools()

	if r.rec.Failed() {
		if msg := r.rec.Message(); msg != "" {
			fmt.Fprintf(r.out, "first failure: %s\n", msg)
		}
		fmt.Fprintf(r.out, "%d errors, %d warnings\n", r.rec.Errors(), r.rec.Warnings())
		return ErrFailed
	}

	if r.opts.Touch != "" {
		if err := os.WriteFile(r.opts.Touch, nil, 0o644); err != nil {
			return fmt.Errorf("touch: %w", err)
		}
	}
	return nil
}

// reportSummary prints the gamma error buckets accumulated since the last
// family and resets them.
func (r *Runner) reportSummary(title string) {
	s := r.summary
	r.summary = gamma.Summary{}
	if r.opts.Quiet || r.opts.Speed {
		return
	}
	fmt.Fprintf(r.out, "%s error summary (output units):\n", title)
	fmt.Fprintf(r.out, "  gray  2 bit: %.5f\n", s.Gray2)
	fmt.Fprintf(r.out, "  gray  4 bit: %.5f\n", s.Gray4)
	fmt.Fprintf(r.out, "  gray  8 bit: %.5f\n", s.Gray8)
	fmt.Fprintf(r.out, "  gray 16 bit: %.5f\n", s.Gray16)
	fmt.Fprintf(r.out, "  color 8 bit: %.5f\n", s.Color8)
	fmt.Fprintf(r.out, "  color 16 bit: %.5f\n", s.Color16)
}

// reportPools prints the allocation statistics of both pools.
func (r *Runner) reportPools() {
	if r.opts.Quiet {
		return
	}
	fmt.Fprintf(r.out, "allocated memory statistics (in bytes):\n")
	for _, p := range []*pool.Pool{r.rpool, r.wpool} {
		st := p.MaxStats()
		fmt.Fprintf(r.out, "  %-5s %d maximum single, %d peak, %d total\n",
			p.Name, st.MaxSingle, st.Peak, st.Total)
	}
}

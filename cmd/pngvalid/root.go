package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pngkit/pngkit/gamma"
	"github.com/pngkit/pngkit/harness"
	"github.com/pngkit/pngkit/internal/pngtest"
)

var (
	verbose     bool
	logErrors   bool
	quiet       bool
	allGammas   bool
	noPromote   bool
	speed       bool
	noGamma     bool
	progressive bool
	interlace   bool
	sbitLow     uint8
	touchFile   string

	maxAbs8  float64
	maxOut8  float64
	maxPC8   float64
	maxAbs16 float64
	maxOut16 float64
	maxPC16  float64
)

var rootCmd = &cobra.Command{
	Use:   "pngvalid",
	Short: "Validate a PNG codec against generated images",
	Long: `pngvalid writes a deterministic image in every supported format through
the codec under test, reads each one back in both read modes, and checks the
decoded pixels against the generator. With gamma tests enabled it also
rewrites the streams' gamma metadata in transit and validates the corrected
samples against the exact transform within configurable tolerances.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	f := rootCmd.Flags()
	f.BoolVarP(&verbose, "verbose", "v", false, "Log every test as it runs")
	f.BoolVarP(&logErrors, "log", "l", false, "Keep going after failures instead of stopping")
	f.BoolVarP(&quiet, "quiet", "q", false, "Suppress the summary output")
	f.BoolVarP(&allGammas, "all-gammas", "g", false, "Sweep the full gamma matrix")
	f.BoolVarP(&noPromote, "warnings-ok", "w", false, "Do not count warnings as failures")
	f.BoolVar(&speed, "speed", false, "Decode everything but skip sample validation")
	f.BoolVar(&noGamma, "nogamma", false, "Skip the gamma test families")
	f.BoolVar(&progressive, "progressive-read", false, "Read through the push interface")
	f.BoolVar(&interlace, "interlace", false, "Run the gamma families on interlaced images")
	f.Uint8Var(&sbitLow, "sbitlow", harness.DefaultSBitLow, "Lowest significant-bit count swept")
	f.StringVar(&touchFile, "touch", "", "File created (empty) on success")

	def := gamma.DefaultTolerances()
	f.Float64Var(&maxAbs8, "maxabs8", def.MaxAbs8, "Absolute sample error limit, 8 bit")
	f.Float64Var(&maxOut8, "maxout8", def.MaxOut8, "Output value error limit, 8 bit")
	f.Float64Var(&maxPC8, "maxpc8", def.MaxPC8, "Percentage sample error limit, 8 bit")
	f.Float64Var(&maxAbs16, "maxabs16", def.MaxAbs16, "Absolute sample error limit, 16 bit")
	f.Float64Var(&maxOut16, "maxout16", def.MaxOut16, "Output value error limit, 16 bit")
	f.Float64Var(&maxPC16, "maxpc16", def.MaxPC16, "Percentage sample error limit, 16 bit")
}

func run() error {
	opts := harness.Options{
		Verbose:               verbose,
		Log:                   logErrors,
		Quiet:                 quiet,
		Speed:                 speed,
		NoGamma:               noGamma,
		Progressive:           progressive,
		Interlace:             interlace,
		SBitLow:               sbitLow,
		NoWarningPromotion:    noPromote,
		NoInputPrecision16To8: false,
		Touch:                 touchFile,
		Tolerances: gamma.Tolerances{
			MaxAbs8:  maxAbs8,
			MaxOut8:  maxOut8,
			MaxPC8:   maxPC8,
			MaxAbs16: maxAbs16,
			MaxOut16: maxOut16,
			MaxPC16:  maxPC16,
		},
		Output: os.Stdout,
	}
	if allGammas {
		opts.NGammas = harness.AllGammas
	}
	if verbose {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	r := harness.NewRunner(pngtest.Codec{}, opts)
	err := r.Run()
	if err != nil {
		rec := r.Recorder()
		if msg := rec.Message(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		return err
	}
	if !quiet {
		fmt.Println("all tests passed")
	}
	return nil
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

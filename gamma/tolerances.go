package gamma

// Compensation for the codec's 2 and 4 bit greyscale paths: the 8-bit gamma
// table value is shifted down, not rounded, so the output error reaches the
// values below. These are measured characteristics of the system under test,
// not tunable tolerances; keep them as literals.
const (
	outErrGray2 = .73182 - .5
	outErrGray4 = .90644 - .5
)

// Threshold is the gamma difference below which the codec skips correction
// entirely; transforms with |file*screen - 1| under it must leave samples
// untouched.
const Threshold = 0.05

// Tolerances are the per-bit-depth error limits accepted during gamma
// validation. Absolute and percentage limits apply in linear light space;
// output limits apply in encoded units on top of the implicit ±0.5
// quantization allowance.
type Tolerances struct {
	MaxAbs8  float64 // absolute sample error, 0..1
	MaxPC8   float64 // percentage sample error, 0..100
	MaxOut8  float64 // output value error, encoded units
	MaxAbs16 float64
	MaxPC16  float64
	MaxOut16 float64
}

// DefaultTolerances returns the limits the harness runs with unless
// overridden from the command line.
func DefaultTolerances() Tolerances {
	return Tolerances{
		MaxAbs8:  .00005,
		MaxPC8:   .499, // I.e., .499%
		MaxOut8:  .1,   // Limit for 8 bit to 8 bit output
		MaxAbs16: .00005,
		MaxPC16:  .005,
		MaxOut16: .499, // Width of 16 bit error
	}
}

// AbsErr returns the absolute error limit for the given output bit depth.
func (t Tolerances) AbsErr(bitDepth uint8) float64 {
	if bitDepth == 16 {
		return t.MaxAbs16
	}
	return t.MaxAbs8
}

// PCErr returns the percentage error limit as a fraction.
func (t Tolerances) PCErr(bitDepth uint8) float64 {
	if bitDepth == 16 {
		return t.MaxPC16 * .01
	}
	return t.MaxPC8 * .01
}

// OutErr returns the output value error limit for the given depth, folding
// in the fixed low-depth greyscale compensation.
func (t Tolerances) OutErr(bitDepth uint8) float64 {
	switch bitDepth {
	case 2:
		return outErrGray2
	case 4:
		return outErrGray4
	case 16:
		return t.MaxOut16
	}
	return t.MaxOut8
}
